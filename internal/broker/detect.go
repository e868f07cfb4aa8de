package broker

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/PaesslerAG/jsonpath"
)

// pieKeys are fields whose presence means the object is pie data, not an error.
var pieKeys = []string{"$.id", "$.result", "$.settings", "$.dividendDetails"}

// errorCodeKeys and errorMessageKeys are where brokerage error payloads put
// their code and human readable text.
var (
	errorCodeKeys    = []string{"$.code", "$.errorCode", "$.type"}
	errorMessageKeys = []string{"$.errorMessage", "$.message", "$.error", "$.detail"}
)

// detectBusinessError inspects a 2xx body and returns a *BusinessError when
// it encodes an application failure instead of data. Bodies that are not a
// JSON object are left to the shape parsers.
func detectBusinessError(body []byte) error {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	for name, v := range obj {
		if list, isList := v.([]any); isList && isPieList(name, list) {
			return nil
		}
	}

	for _, p := range pieKeys {
		if _, err := jsonpath.Get(p, doc); err == nil {
			return nil
		}
	}

	code := firstString(doc, errorCodeKeys)
	message := firstString(doc, errorMessageKeys)
	if code == "" && message == "" {
		return nil
	}
	return &BusinessError{Code: code, Message: message, Body: string(body)}
}

// isPieList reports whether a top-level array field holds pie data: every
// element carries an id, and the field is either a known envelope field or non-empty.
func isPieList(name string, list []any) bool {
	if len(list) == 0 {
		return slices.Contains(envelopeFields, name)
	}
	for _, item := range list {
		if _, err := jsonpath.Get("$.id", item); err != nil {
			return false
		}
	}
	return true
}

func firstString(doc any, paths []string) string {
	for _, p := range paths {
		v, err := jsonpath.Get(p, doc)
		if err != nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return fmt.Sprint(s)
		case map[string]any:
			// nested error objects like {"error": {"message": "..."}}
			if m := firstString(s, []string{"$.message", "$.code"}); m != "" {
				return m
			}
		}
	}
	return ""
}
