package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "anon-key"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func newPostgRESTServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testAPIKey, r.Header.Get("Authorization"))
		w.Header().Set(headerContentType, contentTypeJSON)

		switch r.URL.Path {
		case "/fertilizers":
			assert.Equal(t, "id,brand", r.URL.Query().Get("select"))
			w.Write([]byte(`[{"id":1,"brand":"Calcium Nitrate"}]`))
		case "/fertilizer_components":
			w.Write([]byte(`[{"fertilizer_id":1,"expressed_as":"NN","value":0.144}]`))
		case "/ion_conversion":
			w.Write([]byte(`[{"expressed_as":"NN","ion_form":"NO3-","molar_mass_expressed":14.007,"molar_mass_ion":62.004,"ion_count":1,"ion_valence":-1,"ion_conductivity":71.4}]`))
		case "/element_conversion":
			w.Write([]byte(`[{"oxide_name":"MnO","element_symbol":"Mn","element_mw":54.938,"oxide_mw":70.937}]`))
		case "/phosphate_dissociation":
			if r.URL.Query().Get("pH") == "eq.6.0" {
				w.Write([]byte(`[{"pH":6.0,"H2PO4-":0.9405,"HPO4^2-":0.0594,"PO4^3-":0.0}]`))
				return
			}
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPostgREST_ReferenceTables(t *testing.T) {
	srv := newPostgRESTServer(t)
	defer srv.Close()

	c := NewPostgREST(srv.URL+"/", testAPIKey, 5*time.Second, discardLogger())
	tables, err := c.ReferenceTables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Fertilizer{{ID: 1, Brand: "Calcium Nitrate"}}, tables.Fertilizers)
	assert.Equal(t, []domain.FertilizerComponent{{FertilizerID: 1, ExpressedAs: domain.ElementNN, Value: 0.144}}, tables.Components)
	require.Len(t, tables.IonConversions, 1)
	assert.Equal(t, domain.IonNO3, tables.IonConversions[0].IonForm)
	assert.InDelta(t, 71.4, tables.IonConversions[0].IonConductivity, 1e-9)
	require.Len(t, tables.ElementConversions, 1)
	assert.Equal(t, domain.TraceMn, tables.ElementConversions[0].ElementSymbol)
}

func TestPostgREST_PhosphateDissociation(t *testing.T) {
	srv := newPostgRESTServer(t)
	defer srv.Close()
	c := NewPostgREST(srv.URL, testAPIKey, 5*time.Second, discardLogger())

	row, err := c.PhosphateDissociation(context.Background(), 5.96)
	require.NoError(t, err)
	assert.Equal(t, domain.PhosphateDissociationRow{PH: 6.0, H2PO4: 0.9405, HPO4: 0.0594, PO4: 0}, row)

	_, err = c.PhosphateDissociation(context.Background(), 3.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingReferenceData)
}

func TestPostgREST_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid api key"}`))
	}))
	defer srv.Close()

	c := NewPostgREST(srv.URL, "", 5*time.Second, discardLogger())
	_, err := c.ReferenceTables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.NotErrorIs(t, err, domain.ErrMissingReferenceData)
}

func TestPostgREST_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := NewPostgREST(srv.URL, "", 5*time.Second, discardLogger())
	_, err := c.PhosphateDissociation(context.Background(), 6.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode phosphate_dissociation")
}

func TestPostgREST_ContextCanceled(t *testing.T) {
	srv := newPostgRESTServer(t)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewPostgREST(srv.URL, testAPIKey, 5*time.Second, discardLogger())
	_, err := c.ReferenceTables(ctx)
	require.Error(t, err)
}
