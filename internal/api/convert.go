package api

import (
	"scott/internal/logtail"
	"scott/internal/records"
)

// FromSessionInfo converts registry session details to the wire form.
func FromSessionInfo(info logtail.SessionInfo) LogSession {
	return LogSession{
		ID:              info.ID,
		MaxLines:        info.MaxLines,
		IntervalSeconds: info.IntervalSecs,
		StartedAt:       info.StartedAt,
		Emitted:         info.Emitted,
		LastSize:        info.LastSize,
		State:           info.State,
	}
}

// FromSessionInfos converts a slice, never returning nil.
func FromSessionInfos(infos []logtail.SessionInfo) []LogSession {
	out := make([]LogSession, 0, len(infos))
	for _, info := range infos {
		out = append(out, FromSessionInfo(info))
	}
	return out
}

// FromCustomerPage splits a records page into items and pagination.
func FromCustomerPage(page records.CustomerPage) CustomerList {
	items := page.Items
	if items == nil {
		items = []records.Customer{}
	}
	return CustomerList{
		Customers: items,
		Pagination: Pagination{
			Page:    page.Page,
			PerPage: page.PerPage,
			Total:   page.Total,
			Pages:   page.Pages,
			HasNext: page.HasNext,
			HasPrev: page.HasPrev,
		},
	}
}
