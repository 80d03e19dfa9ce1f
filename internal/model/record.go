package model

import (
	"net/http"
	"time"
)

const (
	StatusSuccess = "Success"
	StatusFailure = "Failure"

	titleSeparator = " - "
)

// Field names attached to a record next to its title.
const (
	FieldRequestArgs  = "requestArgs"
	FieldResponse     = "response"
	FieldDebugTrace   = "debugTrace"
	FieldResponseCode = "responseCode"
	FieldResponseBody = "responseBody"
)

// FieldNames lists every field a record may carry, in display order.
var FieldNames = []string{
	FieldRequestArgs,
	FieldResponse,
	FieldDebugTrace,
	FieldResponseCode,
	FieldResponseBody,
}

// Record is one captured API call. It is written once and never updated.
type Record struct {
	ID        string            `json:"id" bson:"_id" db:"id"`
	Title     string            `json:"title" bson:"title" db:"title"`
	Status    bool              `json:"status" bson:"status" db:"status"`
	URL       string            `json:"url" bson:"url" db:"url"`
	CreatedAt time.Time         `json:"created_at" bson:"created_at" db:"created_at"`
	Fields    map[string]string `json:"fields" bson:"fields" db:"-"`
}

// Summary is the listing view of a record, without its fields.
type Summary struct {
	ID        string    `json:"id" bson:"_id" db:"id"`
	Title     string    `json:"title" bson:"title" db:"title"`
	Status    bool      `json:"status" bson:"status" db:"status"`
	URL       string    `json:"url" bson:"url" db:"url"`
	CreatedAt time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// Title builds the record label: the target URL followed by the status word.
func Title(url string, status bool) string {
	if status {
		return url + titleSeparator + StatusSuccess
	}
	return url + titleSeparator + StatusFailure
}

// Summary returns the listing view of r.
func (r *Record) Summary() Summary {
	return Summary{
		ID:        r.ID,
		Title:     r.Title,
		Status:    r.Status,
		URL:       r.URL,
		CreatedAt: r.CreatedAt,
	}
}

// CopyFields returns a copy of the record fields so callers cannot reach the stored map.
func (r *Record) CopyFields() map[string]string {
	out := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.Fields = r.CopyFields()
	return &c
}

// Response is the success value handed to the hook by the HTTP client.
type Response struct {
	StatusCode int         `json:"code"`
	Message    string      `json:"message"`
	Headers    http.Header `json:"headers"`
	Body       string      `json:"body"`
	Cookies    []string    `json:"cookies"`
}

func (r Response) ResponseCode() int {
	return r.StatusCode
}

func (r Response) ResponseBody() string {
	return r.Body
}

// Filter narrows record listings.
type Filter struct {
	// Status filters by outcome when set.
	Status *bool
	Limit  int
	Offset int
}

const DefaultListLimit = 50

// PageLimit returns the page size, defaulting to DefaultListLimit.
func (f Filter) PageLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

func (f Filter) PageOffset() int {
	if f.Offset < 0 {
		return 0
	}
	return f.Offset
}
