package analysis

import "context"

// EventQuery narrows one event fetch to a fight window, a data type, and the
// filters the upstream applies server-side. Zero values mean "no filter".
type EventQuery struct {
	DataType    string
	Start       float64
	End         float64
	Limit       int
	AbilityID   int
	AbilityName string
	Filter      string
}

// TableEntry is one row of a table-style aggregate (DamageDone, Healing).
type TableEntry struct {
	ID           *int     `json:"id"`
	Name         string   `json:"name"`
	Total        *float64 `json:"total"`
	TotalReduced *float64 `json:"totalReduced"`
}

// Amount returns the row total, preferring total over totalReduced.
func (e *TableEntry) Amount() float64 {
	if e.Total != nil {
		return *e.Total
	}
	if e.TotalReduced != nil {
		return *e.TotalReduced
	}
	return 0
}

// ReportMeta is the per-report actor bookkeeping every summary needs:
// id-to-name and id-to-class maps plus the pet/summon owner graph.
type ReportMeta struct {
	Fights      []Fight
	ActorNames  map[int]string
	ActorClass  map[int]string
	ActorOwners map[int]int
}

// Source is one report's upstream data. The network client implements it;
// tests supply fakes. Pagination and retry stay behind this boundary, so
// every method yields complete per-fight data or an error.
type Source interface {
	Meta(ctx context.Context) (*ReportMeta, error)
	PlayerDetails(ctx context.Context, fightIDs []int) (*PlayerDetails, error)
	Events(ctx context.Context, q EventQuery) ([]RawEvent, error)
	Table(ctx context.Context, dataType string, fight Fight, filter string) ([]TableEntry, error)
	AbilityLabels(ctx context.Context) (map[int]string, error)
}

// Provider opens a Source for a report code. Cross-report merges use it to
// reach the secondary recordings of the same encounter.
type Provider interface {
	Open(ctx context.Context, reportCode string) (Source, error)
}
