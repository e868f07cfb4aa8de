package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/camuig/pie-watch/internal/portfolio"
)

// wirePie is a listing entry as sent by the API; ID is a pointer so a missing
// id can be told apart from id 0.
type wirePie struct {
	ID       *int64             `json:"id"`
	Cash     float64            `json:"cash"`
	Dividend portfolio.Dividend `json:"dividendDetails"`
	Result   portfolio.Result   `json:"result"`
	Progress *float64           `json:"progress"`
	Status   *string            `json:"status"`
}

func (w wirePie) toPie(id int64) portfolio.Pie {
	return portfolio.Pie{
		ID:       id,
		Cash:     w.Cash,
		Dividend: w.Dividend,
		Result:   w.Result,
		Progress: w.Progress,
		Status:   w.Status,
	}
}

type listShape struct {
	name  string
	parse func([]byte) ([]portfolio.Pie, error)
}

// listShapes are tried in order; the first that parses wins.
var listShapes = []listShape{
	{"array", parseArray},
	{"id-keyed object", parseKeyed},
	{"envelope", parseEnvelope},
}

// ParsePieList decodes a pie listing in any accepted shape. Business error
// payloads are reported as *BusinessError; bodies no shape accepts as *SchemaError.
func ParsePieList(body []byte) ([]portfolio.Pie, error) {
	if err := detectBusinessError(body); err != nil {
		return nil, err
	}

	var lastErr error
	for _, shape := range listShapes {
		pies, err := shape.parse(body)
		if err == nil {
			return pies, nil
		}
		lastErr = fmt.Errorf("%s: %w", shape.name, err)
	}
	return nil, &SchemaError{Body: string(body), Err: lastErr}
}

func parseArray(body []byte) ([]portfolio.Pie, error) {
	var items []wirePie
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	pies := make([]portfolio.Pie, 0, len(items))
	for i, w := range items {
		if w.ID == nil {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
		pies = append(pies, w.toPie(*w.ID))
	}
	return pies, nil
}

func parseKeyed(body []byte) ([]portfolio.Pie, error) {
	var items map[string]wirePie
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, err
	}
	pies := make([]portfolio.Pie, 0, len(items))
	for key, w := range items {
		keyID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			if w.ID == nil {
				return nil, fmt.Errorf("key %q is not a pie id", key)
			}
			keyID = *w.ID
		}
		if w.ID != nil && *w.ID != keyID {
			return nil, fmt.Errorf("key %q does not match id %d", key, *w.ID)
		}
		pies = append(pies, w.toPie(keyID))
	}
	sort.Slice(pies, func(i, j int) bool { return pies[i].ID < pies[j].ID })
	return pies, nil
}

// envelopeFields are the usual names of the list field in wrapped responses.
var envelopeFields = []string{"items", "pies", "data", "content"}

func parseEnvelope(body []byte) ([]portfolio.Pie, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	for _, name := range envelopeFields {
		if raw, ok := obj[name]; ok {
			return parseArray(raw)
		}
	}

	// otherwise accept a single array-valued field
	var list json.RawMessage
	for _, raw := range obj {
		if len(raw) > 0 && raw[0] == '[' {
			if list != nil {
				return nil, errors.New("several list fields")
			}
			list = raw
		}
	}
	if list == nil {
		return nil, errors.New("no list field")
	}
	return parseArray(list)
}

type wireDetail struct {
	Settings *struct {
		CreationDate *float64 `json:"creationDate"`
		Name         *string  `json:"name"`
	} `json:"settings"`
}

// ParsePieMeta decodes a pie detail response into its enrichment data.
func ParsePieMeta(body []byte) (portfolio.Meta, error) {
	if err := detectBusinessError(body); err != nil {
		return portfolio.Meta{}, err
	}
	var d wireDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return portfolio.Meta{}, &SchemaError{Body: string(body), Err: err}
	}
	if d.Settings == nil || d.Settings.CreationDate == nil {
		return portfolio.Meta{}, &SchemaError{Body: string(body), Err: errors.New("missing settings.creationDate")}
	}
	m := portfolio.Meta{CreatedAt: *d.Settings.CreationDate}
	if d.Settings.Name != nil {
		m.Name = *d.Settings.Name
	}
	return m, nil
}
