package cafci

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndewijer/fci-sync/internal/apperrors"
)

const masterBody = `{"data":[
  {"id":10,"nombre":"Renta Fija Plus","codigoCNV":"123","estado":"1","objetivo":"Ganancias",
   "gerente":{"nombre":"Gestora SA","cuit":"30-1"},"depositaria":{"nombre":"Banco SA","cuit":"30-2"},
   "tipoRenta":{"id":"3","nombre":"Renta Fija"},"horizonte":{"nombre":"Corto Plazo"},
   "clase_fondos":[
     {"id":20,"nombre":"Clase A","tickerISIN":"AR000","inversionMinima":"1.000,00","honorarioIngreso":"0,5%"},
     {"id":21,"nombre":"Clase B","inversionMinima":""}
   ]},
  {"id":11,"nombre":"Acciones","clase_fondos":[{"id":30,"nombre":"Clase U"}]}
]}`

const detailBody = `{"data":{
  "info":{
    "diaria":{"actual":{"referenceDay":"01/01/2025","patrimonio":"1.500.000,25","rendimientos":{"day":{"rendimiento":"1.5","tna":"20,1"}}}},
    "semanal":{"fechaDatos":"01/01/2025","carteras":[{"nombreActivo":"BONO AR","share":"40.00","tipoActivo":{"nombre":"Bonos"}}]}
  },
  "model":{"tickerISIN":"AR999","tickerBloomberg":"BBG1"}
}}`

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.BaseDelay = time.Millisecond
	cfg.Timeout = time.Second
	return NewClient(cfg, zerolog.Nop())
}

func TestClient_FetchMaster(t *testing.T) {
	t.Run("decodes funds and classes in source order", func(t *testing.T) {
		var gotReq *http.Request
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReq = r
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(masterBody))
		}))
		defer srv.Close()

		// Execute
		master, err := newTestClient(t, srv.URL).FetchMaster(context.Background())

		// Assert
		require.NoError(t, err)
		require.Len(t, master.Funds, 2)
		assert.Equal(t, masterBody, string(master.Raw))

		f := master.Funds[0]
		assert.Equal(t, "10", f.ID)
		assert.Equal(t, "Gestora SA", f.Manager.Name)
		assert.Equal(t, "30-2", f.Depository.TaxID)
		assert.Equal(t, "Renta Fija", f.IncomeType.Name)
		require.Len(t, f.Classes, 2)
		assert.Equal(t, "20", f.Classes[0].ID)
		assert.Equal(t, "10", f.Classes[0].FundID)
		assert.Equal(t, "AR000", f.Classes[0].ISIN)
		require.NotNil(t, f.Classes[0].MinInvestment)
		assert.InDelta(t, 1000.0, *f.Classes[0].MinInvestment, 1e-9)
		require.NotNil(t, f.Classes[0].Fees.Entry)
		assert.InDelta(t, 0.5, *f.Classes[0].Fees.Entry, 1e-9)
		assert.Nil(t, f.Classes[1].MinInvestment)

		require.NotNil(t, gotReq)
		assert.Equal(t, "/fondo", gotReq.URL.Path)
		assert.Equal(t, "0", gotReq.URL.Query().Get("limit"))
		assert.Equal(t, "1", gotReq.URL.Query().Get("estado"))
		assert.Contains(t, gotReq.URL.RawQuery, "entidad;gerente")
		assert.Equal(t, DefaultUserAgent, gotReq.Header.Get("User-Agent"))
		assert.Equal(t, "https://www.cafci.org.ar", gotReq.Header.Get("Origin"))
		assert.Equal(t, "https://www.cafci.org.ar/", gotReq.Header.Get("Referer"))
		assert.Equal(t, "application/json, text/plain, */*", gotReq.Header.Get("Accept"))
	})

	t.Run("missing data array is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchMaster(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})

	t.Run("non json body is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchMaster(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})

	t.Run("persistent 5xx is upstream unavailable after retry budget", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchMaster(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
		assert.Equal(t, int32(3), calls.Load())
	})
}

func TestClient_FetchDetail(t *testing.T) {
	t.Run("decodes returns, dates and composition", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/fondo/10/clase/20/ficha", r.URL.Path)
			_, _ = w.Write([]byte(detailBody))
		}))
		defer srv.Close()

		detail, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "10", "20")

		require.NoError(t, err)
		require.NotNil(t, detail)
		assert.Equal(t, "01/01/2025", detail.ReferenceDate)
		assert.Equal(t, "01/01/2025", detail.CompositionDate)
		require.NotNil(t, detail.AUM)
		assert.InDelta(t, 1500000.25, *detail.AUM, 1e-6)

		perf := detail.Performance()
		require.NotNil(t, perf.Day.Return)
		assert.InDelta(t, 1.5, *perf.Day.Return, 1e-9)
		require.NotNil(t, perf.Day.Rate)
		assert.InDelta(t, 20.1, *perf.Day.Rate, 1e-9)

		require.Len(t, detail.Composition, 1)
		entry := detail.Composition[0]
		assert.Equal(t, "BONO AR", entry.Asset)
		require.NotNil(t, entry.Percentage)
		assert.InDelta(t, 40.0, *entry.Percentage, 1e-9)
		assert.Equal(t, "Bonos", entry.AssetType)
		assert.Contains(t, entry.Raw, "BONO AR")

		assert.Equal(t, "AR999", detail.ISIN)
		assert.Contains(t, detail.Raw, "carteras")
	})

	t.Run("empty data is not an error", func(t *testing.T) {
		for _, body := range []string{`{"data":null}`, `{}`, `{"data":{}}`} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))

			detail, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "1", "2")
			srv.Close()

			assert.NoError(t, err, body)
			assert.Nil(t, detail, body)
		}
	})

	t.Run("bad json is malformed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"info":`))
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "1", "2")
		assert.ErrorIs(t, err, apperrors.ErrMalformedResponse)
	})

	t.Run("429 is rate limited after retries", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "1", "2")
		assert.ErrorIs(t, err, apperrors.ErrRateLimited)
		assert.Equal(t, "rate_limited", ErrorKind(err))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("4xx is not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "1", "2")

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusNotFound, se.StatusCode)
		assert.True(t, IsUpstreamError(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("recovers from a transient 5xx", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(detailBody))
		}))
		defer srv.Close()

		detail, err := newTestClient(t, srv.URL).FetchDetail(context.Background(), "10", "20")
		require.NoError(t, err)
		assert.NotNil(t, detail)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("timeouts end as unreachable", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		c.httpClient.Timeout = 20 * time.Millisecond

		_, err := c.FetchDetail(context.Background(), "1", "2")
		assert.ErrorIs(t, err, apperrors.ErrUnreachable)
		assert.ErrorIs(t, err, apperrors.ErrTransportTimeout)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("connection refused ends as unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := newTestClient(t, url).FetchDetail(context.Background(), "1", "2")
		assert.ErrorIs(t, err, apperrors.ErrUnreachable)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := newTestClient(t, srv.URL).FetchDetail(ctx, "1", "2")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHeaderTransport_DoesNotOverrideExplicitHeaders(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	tr := newHeaderTransport(nil, DefaultConfig())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "custom")

	resp, err := (&http.Client{Transport: tr}).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "custom", ua)
}
