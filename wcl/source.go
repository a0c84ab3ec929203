package wcl

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"wcl_check/analysis"
	"wcl_check/cache"

	"github.com/pkg/errors"
)

const defaultEventLimit = 10000

// Provider opens report sources backed by the GraphQL client. Fully
// paginated event windows are cached on disk so repeated jobs against the
// same report skip the API.
type Provider struct {
	client   *Client
	csEvents *cache.Storage
}

func NewProvider(client *Client, csEvents *cache.Storage) *Provider {
	return &Provider{
		client:   client,
		csEvents: csEvents,
	}
}

func (p *Provider) Open(ctx context.Context, reportCode string) (analysis.Source, error) {
	code, err := analysis.SanitizeReportCode(reportCode)
	if err != nil {
		return nil, err
	}

	return &reportSource{
		provider: p,
		code:     code,
	}, nil
}

type reportSource struct {
	provider *Provider
	code     string

	metaLock      sync.Mutex
	meta          *analysis.ReportMeta
	abilityLabels map[int]string
}

func (s *reportSource) Meta(ctx context.Context) (*analysis.ReportMeta, error) {
	s.metaLock.Lock()
	defer s.metaLock.Unlock()

	if s.meta != nil {
		return s.meta, nil
	}

	var resp reportMetaResponse
	err := s.provider.client.callGraphQL(
		ctx,
		"reportMeta",
		tmplReportMeta,
		struct{ Code string }{Code: s.code},
		&resp,
	)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrorsOf("reportMeta", resp.Errors); err != nil {
		return nil, err
	}

	report := resp.Data.ReportData.Report
	if report == nil {
		return nil, errors.Errorf("report %s not found", s.code)
	}

	meta := &analysis.ReportMeta{
		Fights:      make([]analysis.Fight, 0, len(report.Fights)),
		ActorNames:  make(map[int]string, len(report.MasterData.Actors)),
		ActorClass:  make(map[int]string, len(report.MasterData.Actors)),
		ActorOwners: make(map[int]int),
	}
	for _, f := range report.Fights {
		kill := f.Kill != nil && *f.Kill
		meta.Fights = append(meta.Fights, analysis.Fight{
			ID:    f.ID,
			Name:  f.Name,
			Start: f.StartTime,
			End:   f.EndTime,
			Kill:  kill,
		})
	}
	for _, a := range report.MasterData.Actors {
		meta.ActorNames[a.ID] = a.Name
		if a.SubType != "" {
			meta.ActorClass[a.ID] = a.SubType
		}
		if a.PetOwner != nil {
			meta.ActorOwners[a.ID] = *a.PetOwner
		}
	}

	labels := make(map[int]string, len(report.MasterData.Abilities))
	for _, a := range report.MasterData.Abilities {
		if a.GameID != nil && a.Name != "" {
			labels[*a.GameID] = a.Name
		}
	}

	s.meta = meta
	s.abilityLabels = labels

	return s.meta, nil
}

func (s *reportSource) AbilityLabels(ctx context.Context) (map[int]string, error) {
	_, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	return s.abilityLabels, nil
}

func (s *reportSource) PlayerDetails(ctx context.Context, fightIDs []int) (*analysis.PlayerDetails, error) {
	ids := make([]string, 0, len(fightIDs))
	for _, id := range fightIDs {
		ids = append(ids, strconv.Itoa(id))
	}

	var resp playerDetailsResponse
	err := s.provider.client.callGraphQL(
		ctx,
		"playerDetails",
		tmplPlayerDetails,
		struct {
			Code     string
			FightIDs string
		}{
			Code:     s.code,
			FightIDs: strings.Join(ids, ", "),
		},
		&resp,
	)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrorsOf("playerDetails", resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data.ReportData.Report == nil {
		return nil, errors.Errorf("report %s not found", s.code)
	}

	var inner playerDetailsInner
	raw := resp.Data.ReportData.Report.PlayerDetails
	if len(raw) > 0 {
		if err := jsoniterUnmarshal(raw, &inner); err != nil {
			return nil, err
		}
	}

	return &inner.Data.PlayerDetails, nil
}

func (s *reportSource) Events(ctx context.Context, q analysis.EventQuery) ([]analysis.RawEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	filter := eventFilterOf(q)

	h := fnv.New128a()
	fmt.Fprintf(
		h,
		"%s_dt_%s___st_%s_et_%s___lim_%d_aid_%d___flt_%s",
		s.code, q.DataType,
		ft(q.Start), ft(q.End),
		limit, q.AbilityID,
		filter,
	)

	var events []analysis.RawEvent
	if cs := s.provider.csEvents; cs != nil && cs.Load(h, &events) {
		return events, nil
	}

	start := q.Start
	for {
		var resp eventsResponse
		err := s.provider.client.callGraphQL(
			ctx,
			"events",
			tmplEvents,
			struct {
				Code      string
				Start     string
				End       string
				DataType  string
				Limit     int
				AbilityID int
				Filter    string
			}{
				Code:      s.code,
				Start:     ft(start),
				End:       ft(q.End),
				DataType:  q.DataType,
				Limit:     limit,
				AbilityID: q.AbilityID,
				Filter:    filter,
			},
			&resp,
		)
		if err != nil {
			return nil, err
		}
		if err := graphQLErrorsOf("events", resp.Errors); err != nil {
			return nil, err
		}

		report := resp.Data.ReportData.Report
		if report == nil {
			return nil, errors.Errorf("report %s not found", s.code)
		}

		events = append(events, report.Events.Data...)

		next := report.Events.NextPageTimestamp
		if next == nil {
			break
		}
		after := *next + 1
		if after <= start || after >= q.End {
			break
		}
		start = after
	}

	if cs := s.provider.csEvents; cs != nil {
		cs.Save(h, events)
	}

	return events, nil
}

func (s *reportSource) Table(ctx context.Context, dataType string, fight analysis.Fight, filter string) ([]analysis.TableEntry, error) {
	var resp tableResponse
	err := s.provider.client.callGraphQL(
		ctx,
		"table",
		tmplTable,
		struct {
			Code     string
			Start    string
			End      string
			DataType string
			Filter   string
		}{
			Code:     s.code,
			Start:    ft(fight.Start),
			End:      ft(fight.End),
			DataType: dataType,
			Filter:   filter,
		},
		&resp,
	)
	if err != nil {
		return nil, err
	}
	if err := graphQLErrorsOf("table", resp.Errors); err != nil {
		return nil, err
	}
	if resp.Data.ReportData.Report == nil {
		return nil, errors.Errorf("report %s not found", s.code)
	}

	var inner tableInner
	raw := resp.Data.ReportData.Report.Table
	if len(raw) > 0 {
		if err := jsoniterUnmarshal(raw, &inner); err != nil {
			return nil, err
		}
	}

	return inner.Data.Entries, nil
}

// eventFilterOf folds an ability-name restriction into the filter
// expression; the API has no dedicated argument for it.
func eventFilterOf(q analysis.EventQuery) string {
	if q.AbilityName == "" {
		return q.Filter
	}
	clause := fmt.Sprintf("ability.name = %q", q.AbilityName)
	if q.Filter == "" {
		return clause
	}
	return q.Filter + " and " + clause
}

func ft(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
