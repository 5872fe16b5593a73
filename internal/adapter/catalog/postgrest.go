package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/fertigation-mix/internal/domain"
)

// PostgREST reads the catalog from a PostgREST endpoint such as a Supabase
// project's /rest/v1 API.
type PostgREST struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewPostgREST creates a client for baseURL. apiKey may be empty for
// unauthenticated endpoints.
func NewPostgREST(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *PostgREST {
	return &PostgREST{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *PostgREST) ReferenceTables(ctx context.Context) (domain.ReferenceTables, error) {
	var t domain.ReferenceTables

	if err := c.get(ctx, "fertilizers", url.Values{"select": {"id,brand"}, "order": {"id"}}, &t.Fertilizers); err != nil {
		return t, err
	}
	if err := c.get(ctx, "fertilizer_components", url.Values{"select": {"fertilizer_id,expressed_as,value"}}, &t.Components); err != nil {
		return t, err
	}
	ionSelect := "expressed_as,ion_form,molar_mass_expressed,molar_mass_ion,ion_count,ion_valence,ion_conductivity"
	if err := c.get(ctx, "ion_conversion", url.Values{"select": {ionSelect}}, &t.IonConversions); err != nil {
		return t, err
	}
	if err := c.get(ctx, "element_conversion", url.Values{"select": {"*"}}, &t.ElementConversions); err != nil {
		return t, err
	}
	return t, nil
}

func (c *PostgREST) PhosphateDissociation(ctx context.Context, ph float64) (domain.PhosphateDissociationRow, error) {
	key := strconv.FormatFloat(domain.RoundPH(ph), 'f', 1, 64)

	var records []dissociationRecord
	if err := c.get(ctx, "phosphate_dissociation", url.Values{"select": {"*"}, "pH": {"eq." + key}}, &records); err != nil {
		return domain.PhosphateDissociationRow{}, err
	}
	if len(records) == 0 {
		return domain.PhosphateDissociationRow{}, missingDissociation(ph)
	}
	r := records[0]
	return domain.PhosphateDissociationRow{PH: r.PH, H2PO4: r.H2PO4, HPO4: r.HPO4, PO4: r.PO4}, nil
}

func (c *PostgREST) get(ctx context.Context, table string, params url.Values, out any) error {
	fullURL := fmt.Sprintf("%s/%s?%s", c.baseURL, table, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("postgrest %s: status %d: %s", table, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	c.logger.Debug("catalog table fetched", "table", table)
	return nil
}

// dissociationRecord uses the column names of the hosted table.
type dissociationRecord struct {
	PH    float64 `json:"pH"`
	H2PO4 float64 `json:"H2PO4-"`
	HPO4  float64 `json:"HPO4^2-"`
	PO4   float64 `json:"PO4^3-"`
}
