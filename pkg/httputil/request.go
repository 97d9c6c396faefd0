package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// GetPathVars returns the mux path variables for the request
func GetPathVars(r *http.Request) map[string]string {
	return mux.Vars(r)
}

// ParsePathInt64 extracts and parses an int64 path parameter
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, fmt.Errorf("missing path parameter: %s", key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %s", key, str)
	}
	return val, nil
}

// ParsePathInt64OrError extracts an int64 path parameter and writes error on failure
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParseQueryInt parses an integer query parameter with a default value
func ParseQueryInt(r *http.Request, key string, def int) int {
	str := r.URL.Query().Get(key)
	if str == "" {
		return def
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return def
	}
	return val
}

// Pagination extracts page_no/page_size query parameters with sane bounds.
func Pagination(r *http.Request) (pageNo, pageSize int) {
	pageNo = ParseQueryInt(r, "page_no", 0)
	pageSize = ParseQueryInt(r, "page_size", 20)
	if pageNo < 0 {
		pageNo = 0
	}
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	return pageNo, pageSize
}
