package wcl

import (
	"wcl_check/analysis"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

func jsoniterUnmarshal(raw jsoniter.RawMessage, v interface{}) error {
	if err := jsoniter.Unmarshal(raw, v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

type graphQLError struct {
	Message string `json:"message"`
}

type reportMetaResponse struct {
	Errors []graphQLError `json:"errors"`
	Data   struct {
		ReportData struct {
			Report *struct {
				Fights []struct {
					ID        int     `json:"id"`
					Name      string  `json:"name"`
					StartTime float64 `json:"startTime"`
					EndTime   float64 `json:"endTime"`
					Kill      *bool   `json:"kill"`
				} `json:"fights"`
				MasterData struct {
					Actors []struct {
						ID       int    `json:"id"`
						Name     string `json:"name"`
						Type     string `json:"type"`
						SubType  string `json:"subType"`
						PetOwner *int   `json:"petOwner"`
					} `json:"actors"`
					Abilities []struct {
						GameID *int   `json:"gameID"`
						Name   string `json:"name"`
					} `json:"abilities"`
				} `json:"masterData"`
			} `json:"report"`
		} `json:"reportData"`
	} `json:"data"`
}

type playerDetailsResponse struct {
	Errors []graphQLError `json:"errors"`
	Data   struct {
		ReportData struct {
			Report *struct {
				// playerDetails is a JSON scalar wrapping another
				// {"data": {"playerDetails": ...}} envelope.
				PlayerDetails jsoniter.RawMessage `json:"playerDetails"`
			} `json:"report"`
		} `json:"reportData"`
	} `json:"data"`
}

type playerDetailsInner struct {
	Data struct {
		PlayerDetails analysis.PlayerDetails `json:"playerDetails"`
	} `json:"data"`
}

type eventsResponse struct {
	Errors []graphQLError `json:"errors"`
	Data   struct {
		ReportData struct {
			Report *struct {
				Events struct {
					Data              []analysis.RawEvent `json:"data"`
					NextPageTimestamp *float64            `json:"nextPageTimestamp"`
				} `json:"events"`
			} `json:"report"`
		} `json:"reportData"`
	} `json:"data"`
}

type tableResponse struct {
	Errors []graphQLError `json:"errors"`
	Data   struct {
		ReportData struct {
			Report *struct {
				Table jsoniter.RawMessage `json:"table"`
			} `json:"report"`
		} `json:"reportData"`
	} `json:"data"`
}

type tableInner struct {
	Data struct {
		Entries []analysis.TableEntry `json:"entries"`
	} `json:"data"`
}
