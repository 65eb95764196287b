package testutil

import (
	"context"
	"sync"

	"github.com/ndewijer/fci-sync/internal/cafci"
	"github.com/ndewijer/fci-sync/internal/model"
)

// MockCafciClient is a mock implementation of cafci.API for testing.
// Details are keyed by class ID; queued errors are returned, one per call,
// before the configured detail.
type MockCafciClient struct {
	mu sync.Mutex

	// Master is returned by FetchMaster.
	Master *cafci.Master
	// MasterError is returned by FetchMaster when set.
	MasterError error

	details map[string]*model.Detail
	errs    map[string][]error
	// OnFetch, when set, runs at the start of every FetchDetail call.
	OnFetch func(fundID, classID string)

	// DetailCalls records class IDs in call order.
	DetailCalls []string
}

// NewMockCafciClient creates a mock with an empty master list.
func NewMockCafciClient() *MockCafciClient {
	return &MockCafciClient{
		Master:  &cafci.Master{Raw: []byte(`{"data":[]}`)},
		details: make(map[string]*model.Detail),
		errs:    make(map[string][]error),
	}
}

// WithFunds configures the master list.
func (m *MockCafciClient) WithFunds(funds ...model.Fund) *MockCafciClient {
	m.Master = &cafci.Master{Funds: funds, Raw: []byte(`{"data":[]}`)}
	return m
}

// WithMasterError configures FetchMaster to fail.
func (m *MockCafciClient) WithMasterError(err error) *MockCafciClient {
	m.MasterError = err
	return m
}

// WithDetail configures the detail returned for classID. A nil detail
// models a class with no published detail.
func (m *MockCafciClient) WithDetail(classID string, d *model.Detail) *MockCafciClient {
	m.details[classID] = d
	return m
}

// WithDetailErrors queues errors returned by the next calls for classID.
func (m *MockCafciClient) WithDetailErrors(classID string, errs ...error) *MockCafciClient {
	m.errs[classID] = append(m.errs[classID], errs...)
	return m
}

// FetchMaster returns the configured master list.
func (m *MockCafciClient) FetchMaster(_ context.Context) (*cafci.Master, error) {
	if m.MasterError != nil {
		return nil, m.MasterError
	}
	return m.Master, nil
}

// FetchDetail returns the next queued error or the configured detail.
func (m *MockCafciClient) FetchDetail(ctx context.Context, fundID, classID string) (*model.Detail, error) {
	if m.OnFetch != nil {
		m.OnFetch(fundID, classID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.DetailCalls = append(m.DetailCalls, classID)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q := m.errs[classID]; len(q) > 0 {
		m.errs[classID] = q[1:]
		return nil, q[0]
	}
	d, ok := m.details[classID]
	if !ok || d == nil {
		return nil, nil
	}
	out := *d
	return &out, nil
}

// Calls returns how many times FetchDetail was called for classID.
func (m *MockCafciClient) Calls(classID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.DetailCalls {
		if c == classID {
			n++
		}
	}
	return n
}

// MakeFund builds a master list fund with one class per class ID.
func MakeFund(fundID, name string, classIDs ...string) model.Fund {
	f := model.Fund{
		ID:         fundID,
		Name:       name,
		Currency:   "ARS",
		Manager:    model.Entity{Name: "Test Manager SA"},
		IncomeType: model.Classification{Name: "Renta Fija"},
	}
	for _, id := range classIDs {
		f.Classes = append(f.Classes, model.FundClass{ID: id, FundID: fundID, Name: "Clase " + id})
	}
	return f
}
