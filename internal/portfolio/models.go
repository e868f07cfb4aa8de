package portfolio

import "strconv"

type Dividend struct {
	Gained     float64 `json:"gained"`
	Reinvested float64 `json:"reinvested"`
	InCash     float64 `json:"inCash"`
}

type Result struct {
	InvestedValue     float64 `json:"priceAvgInvestedValue"`
	CurrentValue      float64 `json:"priceAvgValue"`
	AbsoluteResult    float64 `json:"priceAvgResult"`
	ResultCoefficient float64 `json:"priceAvgResultCoef"`
}

// Pie is one entry of the remote pie listing. It carries live fields only.
type Pie struct {
	ID       int64    `json:"id"`
	Cash     float64  `json:"cash"`
	Dividend Dividend `json:"dividendDetails"`
	Result   Result   `json:"result"`
	Progress *float64 `json:"progress"`
	Status   *string  `json:"status"`
}

// Meta is the one-time enrichment of a pie fetched from its detail endpoint.
type Meta struct {
	CreatedAt float64
	Name      string
}

// Record is the merged view of a pie: the latest live fields plus enrichment.
type Record struct {
	ID        int64    `json:"id"`
	Cash      float64  `json:"cash"`
	Dividend  Dividend `json:"dividendDetails"`
	Result    Result   `json:"result"`
	Progress  *float64 `json:"progress"`
	Status    *string  `json:"status"`
	Name      *string  `json:"name"`
	CreatedAt *float64 `json:"created_at"`
}

// NeedsEnrichment reports whether name or creation date is still unknown.
func (r Record) NeedsEnrichment() bool {
	return r.Name == nil || r.CreatedAt == nil
}

// DisplayName returns the pie name, or its id when the name is not known yet.
func (r Record) DisplayName() string {
	if r.Name != nil && *r.Name != "" {
		return *r.Name
	}
	return "#" + strconv.FormatInt(r.ID, 10)
}

// CreatedAtSeconds returns the creation timestamp, 0 when unknown.
func (r Record) CreatedAtSeconds() float64 {
	if r.CreatedAt == nil {
		return 0
	}
	return *r.CreatedAt
}

func (r Record) clone() Record {
	out := r
	out.Progress = cloneFloat(r.Progress)
	out.Status = cloneString(r.Status)
	out.Name = cloneString(r.Name)
	out.CreatedAt = cloneFloat(r.CreatedAt)
	return out
}

func (r *Record) applyLive(p Pie) {
	r.Cash = p.Cash
	r.Dividend = p.Dividend
	r.Result = p.Result
	r.Progress = cloneFloat(p.Progress)
	r.Status = cloneString(p.Status)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
