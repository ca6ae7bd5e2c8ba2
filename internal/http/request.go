package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dompet/internal/auth"
	"dompet/internal/core"
)

const maxBodyBytes = 64 << 10

var (
	errBadRequest    = errors.New("bad request")
	errMissingAmount = fmt.Errorf("%w: amount is required", errBadRequest)
)

// decodeJSON reads a single JSON object from the body into dst, rejecting
// unknown fields and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// monthParam parses the month from the path value or the "month" query
// parameter, defaulting to the current month when both are absent.
func monthParam(r *http.Request, now time.Time) (core.MonthKey, error) {
	raw := r.PathValue("month")
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("month"))
	}
	if raw == "" {
		return core.MonthOf(now), nil
	}
	return core.ParseMonthKey(raw)
}

// categoryParam returns the trimmed category path value.
func categoryParam(r *http.Request) (string, error) {
	c := strings.TrimSpace(r.PathValue("category"))
	if c == "" {
		return "", core.ErrEmptyCategory
	}
	return c, nil
}

// amountInput accepts a JSON string ("5.000.000") or a JSON number.
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountInput(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a string or a number")
	}
	if strings.HasPrefix(n.String(), "-") {
		return core.ErrNegativeAmount
	}
	*a = amountInput(n.String())
	return nil
}

// queryBool reports whether the query parameter key is a true value.
func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func currentUser(r *http.Request) (core.User, error) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		return core.User{}, core.ErrUnauthenticated
	}
	return u, nil
}
