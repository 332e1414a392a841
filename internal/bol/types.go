package bol

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Metadata holds the form fields of one driver submission.
type Metadata struct {
	Company       string `json:"company"`
	DriverName    string `json:"driver_name"`
	LoadNumber    string `json:"load_number"`
	BOLNumber     string `json:"bol_number"`
	PickupCity    string `json:"pickup_city"`
	PickupState   string `json:"pickup_state"`
	DeliveryCity  string `json:"delivery_city"`
	DeliveryState string `json:"delivery_state"`
	Description   string `json:"description"`
	DocumentType  string `json:"document_type"`
}

// HasRoute reports whether both pickup and delivery city+state are filled in.
func (m Metadata) HasRoute() bool {
	return strings.TrimSpace(m.PickupCity) != "" &&
		strings.TrimSpace(m.PickupState) != "" &&
		strings.TrimSpace(m.DeliveryCity) != "" &&
		strings.TrimSpace(m.DeliveryState) != ""
}

// Validate checks that the submission is attributable to a carrier and
// identifiable: a load number, a BOL number, or a complete route.
func (m Metadata) Validate() error {
	company := strings.TrimSpace(m.Company)
	if company == "" {
		return fmt.Errorf("company is required")
	}
	if _, ok := CarrierByCode(company); !ok {
		return fmt.Errorf("unknown carrier %q", company)
	}
	if strings.TrimSpace(m.LoadNumber) == "" &&
		strings.TrimSpace(m.BOLNumber) == "" &&
		!m.HasRoute() {
		return fmt.Errorf("load number, BOL number, or full pickup/delivery route is required")
	}
	return nil
}

// LoadID returns the identifier the remote ledger records for this
// submission: the load number when present, the BOL number as second choice,
// otherwise a trip identifier derived from the route.
func (m Metadata) LoadID() string {
	if v := strings.TrimSpace(m.LoadNumber); v != "" {
		return v
	}
	if v := strings.TrimSpace(m.BOLNumber); v != "" {
		return v
	}
	return m.TripID()
}

// TripID builds the route fallback identifier, e.g. "Trip-TULSA-MEMPHIS".
func (m Metadata) TripID() string {
	return "Trip-" + cityToken(m.PickupCity) + "-" + cityToken(m.DeliveryCity)
}

func cityToken(city string) string {
	return strings.ToUpper(strings.Join(strings.Fields(city), " "))
}

// Attachment is one freight photo or scanned document captured at submission
// time. Content holds the raw bytes; a live file handle would not survive a
// restart of the terminal.
type Attachment struct {
	Name         string    `json:"name"`
	MIMEType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	Content      []byte    `json:"-"`
}

func (a Attachment) dedupeKey() string {
	return a.Name + "|" + strconv.FormatInt(a.Size, 10) + "|" + strconv.FormatInt(a.LastModified.UnixMilli(), 10)
}

// DuplicateAttachmentError reports a file added twice to one submission.
type DuplicateAttachmentError struct {
	Name string
}

func (e *DuplicateAttachmentError) Error() string {
	return fmt.Sprintf("attachment %q is already part of this submission", e.Name)
}

// ValidateAttachments rejects a submission that carries the same file twice.
// Two files count as the same when name, size and last-modified all match.
func ValidateAttachments(attachments []Attachment) error {
	if len(attachments) == 0 {
		return fmt.Errorf("at least one attachment is required")
	}
	seen := make(map[string]struct{}, len(attachments))
	for _, a := range attachments {
		key := a.dedupeKey()
		if _, ok := seen[key]; ok {
			return &DuplicateAttachmentError{Name: a.Name}
		}
		seen[key] = struct{}{}
	}
	return nil
}
