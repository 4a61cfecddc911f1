package plans

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wealthfund.in/platform/internal/common"
)

type memStore struct {
	mu   sync.Mutex
	next int64
	data map[int64]Plan
}

func newMemStore() *memStore { return &memStore{data: map[int64]Plan{}} }

func (m *memStore) List(context.Context) ([]Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Plan
	for i := int64(1); i <= m.next; i++ {
		if p, ok := m.data[i]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[id]
	if !ok {
		return nil, common.ErrPlanNotFound
	}
	return &p, nil
}

func (m *memStore) Create(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = m.next
	m.data[p.ID] = *p
	return nil
}

func (m *memStore) Save(_ context.Context, p *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[p.ID] = *p
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return common.ErrPlanNotFound
	}
	delete(m.data, id)
	return nil
}

func starter() Input {
	return Input{
		Name:          "Starter Plan",
		Category:      CategoryVIP,
		MinInvestment: decimal.NewFromInt(500),
		DailyReturn:   decimal.NewFromInt(35),
		DurationDays:  20,
		VIPLevel:      1,
	}
}

func TestInputValidation(t *testing.T) {
	cases := map[string]func(*Input){
		"empty name":     func(in *Input) { in.Name = "" },
		"bad category":   func(in *Input) { in.Category = "gold" },
		"zero price":     func(in *Input) { in.MinInvestment = decimal.Zero },
		"negative daily": func(in *Input) { in.DailyReturn = decimal.NewFromInt(-1) },
		"zero duration":  func(in *Input) { in.DurationDays = 0 },
		"fractional":     func(in *Input) { in.MinInvestment = decimal.RequireFromString("10.001") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := starter()
			mutate(&in)
			err := in.Validate()
			require.Error(t, err)
			assert.Equal(t, common.KindValidation, common.KindOf(err))
		})
	}
	in := starter()
	assert.NoError(t, in.Validate())
}

func TestPurchasable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &Plan{}
	assert.NoError(t, p.Purchasable(now))

	past := now.Add(-time.Minute)
	p.ExpiresAt = &past
	assert.ErrorIs(t, p.Purchasable(now), common.ErrPlanExpired)

	future := now.Add(time.Hour)
	p.ExpiresAt = &future
	assert.NoError(t, p.Purchasable(now))
}

func TestServiceCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore())

	p, err := svc.Create(ctx, starter())
	require.NoError(t, err)
	assert.True(t, p.TotalReturn().Equal(decimal.NewFromInt(700)))

	in := starter()
	in.DailyReturn = decimal.NewFromInt(40)
	updated, err := svc.Update(ctx, p.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.DailyReturn.Equal(decimal.NewFromInt(40)))

	_, err = svc.Update(ctx, 99, in)
	assert.ErrorIs(t, err, common.ErrPlanNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, common.ErrPlanNotFound)
}

func TestHandlerCreateAndList(t *testing.T) {
	h := NewHandler(NewService(newMemStore()))
	r := mux.NewRouter()
	h.RegisterAdmin(r)

	body := `{"name":"Growth Plan","category":"vip","minInvestment":"2000","dailyReturn":"100","durationDays":45,"vipLevel":2}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/plans", strings.NewReader(`{"name":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool       `json:"success"`
		Data    []planView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Growth Plan", resp.Data[0].Name)
	assert.True(t, resp.Data[0].TotalReturn.Equal(decimal.NewFromInt(4500)), "100 a day for 45 days")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/plans/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
