// Package remotedataset implements the tabular-backend query client the
// region cache uses to populate entries from a live dataset: SoQL-like
// query construction, WKT envelope serialization, and the SodaResponse
// check table from spec.md §6. Grounded on the teacher's
// internal/core/httpclient client factory and internal/core/ogc WKT
// builder, neither of which reaches for a third-party HTTP client or
// SoQL library — this repo follows that same stdlib-based shape for the
// transport itself.
package remotedataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Response is what RemoteDataset.Query returns on a completed round
// trip (as opposed to a transport failure, which is a Go error).
type Response struct {
	Status  int
	Body    []byte
	HasBody bool
}

// UnexpectedResponseCode is returned by Check when the response status
// doesn't match what the caller expected.
type UnexpectedResponseCode struct {
	Code int
}

func (e *UnexpectedResponseCode) Error() string {
	return fmt.Sprintf("remotedataset: unexpected response code %d", e.Code)
}

// JSONParseError is returned by Check when a response claims the
// expected status but carries no parseable body.
type JSONParseError struct {
	Cause error
}

func (e *JSONParseError) Error() string {
	if e.Cause == nil {
		return "remotedataset: response body missing or not valid JSON"
	}
	return fmt.Sprintf("remotedataset: response body missing or not valid JSON: %v", e.Cause)
}

func (e *JSONParseError) Unwrap() error { return e.Cause }

// GeoJSONFormatError wraps a payload that parsed as JSON but not as a
// GeoJSON FeatureCollection.
type GeoJSONFormatError struct {
	Cause error
}

func (e *GeoJSONFormatError) Error() string {
	return fmt.Sprintf("remotedataset: response is not a valid GeoJSON feature collection: %v", e.Cause)
}

func (e *GeoJSONFormatError) Unwrap() error { return e.Cause }

// Check implements SodaResponse.check (spec.md §6): a transport failure
// propagates verbatim; a matching status with a valid JSON body succeeds
// with that body; a matching status with no body or an invalid JSON body
// is a JSONParseError; any other status is an UnexpectedResponseCode.
func Check(resp Response, transportErr error, expectedStatus int) ([]byte, error) {
	if transportErr != nil {
		return nil, transportErr
	}
	if resp.Status != expectedStatus {
		return nil, &UnexpectedResponseCode{Code: resp.Status}
	}
	if !resp.HasBody {
		return nil, &JSONParseError{}
	}
	if !json.Valid(resp.Body) {
		return nil, &JSONParseError{Cause: errors.New("invalid JSON")}
	}
	return resp.Body, nil
}
