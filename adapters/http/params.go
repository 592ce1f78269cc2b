package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/lsst-sqre/vo-siav2/domain/fault"
)

// MaxBodyBytes caps POST bodies.
const MaxBodyBytes = 10 << 20

// TokenHeader carries the delegated credential for REMOTE repositories.
const TokenHeader = "X-Auth-Request-Token"

// ExtractParams collects raw SIA parameters from the query string (GET),
// a form body or a JSON body (POST). Keys keep their original case.
func ExtractParams(r *http.Request) (map[string][]string, error) {
	if r.Method != http.MethodPost {
		return copyValues(r.URL.Query()), nil
	}

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fault.Usagef("Invalid Content-Type %q", ct)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		return jsonParams(r)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(MaxBodyBytes); err != nil {
			return nil, fault.Usagef("Invalid form body: %s", err)
		}
		if r.MultipartForm != nil && len(r.MultipartForm.File) > 0 {
			return nil, fault.Usagef("File upload not supported")
		}
		return copyValues(r.MultipartForm.Value), nil
	default:
		r.Body = http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fault.Usagef("Invalid form body: %s", err)
		}
		return copyValues(r.PostForm), nil
	}
}

// jsonParams decodes a JSON object body. Scalars become single-element
// lists, lists become string lists and nulls are dropped.
func jsonParams(r *http.Request) (map[string][]string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	out := make(map[string][]string)
	if len(bytes.TrimSpace(body)) == 0 {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fault.Usagef("Invalid JSON body: %s", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fault.Usagef("Invalid JSON body: unexpected content after the top-level object")
	}

	for key, value := range raw {
		values, err := jsonStrings(value)
		if err != nil {
			return nil, fault.Usagef("Validation of '%s' failed: %s.", key, err)
		}
		if len(values) > 0 {
			out[key] = values
		}
	}
	return out, nil
}

var errNestedValue = errors.New("nested objects are not supported")

func jsonStrings(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			if item == nil {
				continue
			}
			s, err := jsonScalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := jsonScalar(x)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func jsonScalar(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", errNestedValue
	}
}

func copyValues(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if len(v) > 0 {
			out[k] = append([]string(nil), v...)
		}
	}
	return out
}
