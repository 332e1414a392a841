package bol

// Carrier is one of the brands the terminal submits paperwork for. TenantTag
// is the tenant identifier the upload endpoint files documents under.
type Carrier struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	TenantTag string `json:"tenant_tag"`
}

var carriers = []Carrier{
	{Code: "qlm", Name: "Quick Lane Motorfreight", TenantTag: "qlm-docs"},
	{Code: "vlt", Name: "Vantage Line Transport", TenantTag: "vlt-docs"},
}

// Carriers returns the registry in display order.
func Carriers() []Carrier {
	ret := make([]Carrier, len(carriers))
	copy(ret, carriers)
	return ret
}

func CarrierByCode(code string) (Carrier, bool) {
	for _, c := range carriers {
		if c.Code == code {
			return c, true
		}
	}
	return Carrier{}, false
}
