package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blues/cfc/internal/campaign"
	"github.com/blues/cfc/internal/chain"
	"github.com/blues/cfc/internal/contract"
	"github.com/blues/cfc/internal/creation"
	"github.com/blues/cfc/internal/donation"
	"github.com/blues/cfc/internal/notify"
	"github.com/blues/cfc/internal/pinning"
	"github.com/blues/cfc/internal/unit"
	"github.com/blues/cfc/internal/wallet"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const account = "0x00000000000000000000000000000000000000aa"

type fakeSource struct {
	records []contract.CampaignRecord
}

func (f *fakeSource) GetCampaigns(context.Context) ([]contract.CampaignRecord, error) {
	return f.records, nil
}

type fakeContract struct {
	donations []*big.Int
	created   []contract.NewCampaign
	err       error
}

func (f *fakeContract) DonateToCampaign(_ context.Context, _ int, value *big.Int) (*chain.Receipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.donations = append(f.donations, value)
	return &chain.Receipt{TxHash: "0xd0", BlockNumber: 9}, nil
}

func (f *fakeContract) CreateCampaign(_ context.Context, req contract.NewCampaign) (*chain.Receipt, error) {
	f.created = append(f.created, req)
	return &chain.Receipt{TxHash: "0xc0", BlockNumber: 10}, nil
}

type fakeSession struct {
	account string
	err     error
}

func (f *fakeSession) Connect(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.account = account
	return account, nil
}

func (f *fakeSession) Account() string { return f.account }

type bound bool

func (b bound) Bound() bool { return bool(b) }

type fakePinner struct{}

func (fakePinner) PinFile(_ context.Context, name string, r io.Reader, _ pinning.Metadata) (*pinning.Result, error) {
	data, _ := io.ReadAll(r)
	if len(data) == 0 {
		return nil, pinning.ErrUploadFailed
	}
	return &pinning.Result{CID: "Qm" + name, URL: "https://gw/ipfs/Qm" + name}, nil
}

func (fakePinner) PinJSON(_ context.Context, content interface{}, meta pinning.Metadata) (*pinning.Result, error) {
	if _, err := json.Marshal(content); err != nil {
		return nil, err
	}
	return &pinning.Result{CID: "Qm" + meta.Name, URL: "https://gw/ipfs/Qm" + meta.Name}, nil
}

type fakeDonators struct {
	count uint64
	err   error
}

func (f fakeDonators) NumberOfCampaigns(context.Context) (uint64, error) {
	return f.count, f.err
}

func (f fakeDonators) GetDonators(_ context.Context, id int) ([]common.Address, []*big.Int, error) {
	return []common.Address{common.HexToAddress(account)}, []*big.Int{big.NewInt(int64(id+1) * 1_500_000)}, nil
}

type fixture struct {
	engine   *gin.Engine
	session  *fakeSession
	contract *fakeContract
	catalog  *campaign.Catalog
	feed     *notify.Feed
}

var now = time.Unix(1_700_000_000, 0)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

func newFixtureWith(t *testing.T, configure func(*Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	source := &fakeSource{records: []contract.CampaignRecord{
		{Title: "A", Target: big.NewInt(100_000_000), AmountCollected: big.NewInt(40_000_000), Deadline: big.NewInt(now.Unix() + 1000)},
		{Title: "B", Target: big.NewInt(50_000_000), AmountCollected: big.NewInt(50_000_000), Deadline: big.NewInt(now.Unix() + 1000)},
	}}
	feed := notify.NewFeed(20)
	catalog := campaign.NewCatalog(source, unit.Sun, campaign.WithClock(func() time.Time { return now }), campaign.WithNotifier(feed))
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	session := &fakeSession{account: account}
	fc := &fakeContract{}
	deps := Deps{
		Session:   session,
		Binding:   bound(true),
		Catalog:   catalog,
		Donations: donation.NewWorkflow(fc, catalog, unit.Sun, feed),
		Creation: creation.NewWorkflow(fc, session, catalog, unit.Sun,
			creation.WithClock(func() time.Time { return now }), creation.WithNotifier(feed)),
		Pinner:   fakePinner{},
		Donators: fakeDonators{count: 2},
		Units:    unit.Sun,
		Feed:     feed,
	}
	if configure != nil {
		configure(&deps)
	}
	engine := Setup(deps)
	return &fixture{engine: engine, session: session, contract: fc, catalog: catalog, feed: feed}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(path, "/api/") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (f *fixture) json(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return f.do(t, method, path, r, "application/json")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)
}

func TestListCampaignsByStatus(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		query  string
		titles []string
	}{
		{"", []string{"A", "B"}},
		{"?status=all", []string{"A", "B"}},
		{"?status=open", []string{"A"}},
		{"?status=closed", []string{"B"}},
	}
	for _, tt := range tests {
		code, env := f.json(t, http.MethodGet, "/api/v1/campaigns"+tt.query, "")
		require.Equal(t, http.StatusOK, code)

		var list struct {
			Campaigns []struct {
				ID     int    `json:"id"`
				Title  string `json:"title"`
				Status string `json:"status"`
			} `json:"campaigns"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &list))
		var titles []string
		for _, c := range list.Campaigns {
			titles = append(titles, c.Title)
		}
		assert.Equal(t, tt.titles, titles, tt.query)
	}

	code, _ := f.json(t, http.MethodGet, "/api/v1/campaigns?status=weird", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetCampaign(t *testing.T) {
	f := newFixture(t)

	code, env := f.json(t, http.MethodGet, "/api/v1/campaigns/0", "")
	require.Equal(t, http.StatusOK, code)
	var c struct {
		Target           string  `json:"target"`
		TargetDisplay    string  `json:"targetDisplay"`
		CollectedDisplay string  `json:"collectedDisplay"`
		Progress         float64 `json:"progress"`
		Status           string  `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "100000000", c.Target)
	assert.Equal(t, "100", c.TargetDisplay)
	assert.Equal(t, "40", c.CollectedDisplay)
	assert.InDelta(t, 40.0, c.Progress, 1e-9)
	assert.Equal(t, "open", c.Status)

	code, _ = f.json(t, http.MethodGet, "/api/v1/campaigns/7", "")
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = f.json(t, http.MethodGet, "/api/v1/campaigns/x", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDonateFlow(t *testing.T) {
	f := newFixture(t)

	code, env := f.json(t, http.MethodPut, "/api/v1/campaigns/0/intent", `{"amount":"abc"}`)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = f.json(t, http.MethodPost, "/api/v1/campaigns/0/donate", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.Empty(t, f.contract.donations)

	code, env = f.json(t, http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp struct {
		Amount    string `json:"amount"`
		TxHash    string `json:"txHash"`
		Refreshed bool   `json:"refreshed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "10000000", resp.Amount)
	assert.Equal(t, "0xd0", resp.TxHash)
	assert.True(t, resp.Refreshed)

	code, _ = f.json(t, http.MethodPost, "/api/v1/campaigns/1/donate", `{"amount":"1"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Len(t, f.contract.donations, 1)
}

func TestDonateRejected(t *testing.T) {
	f := newFixture(t)
	f.contract.err = chain.ErrRejected

	code, env := f.json(t, http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, env.Message, "donation rejected")
}

func TestCreateCampaign(t *testing.T) {
	f := newFixture(t)

	body, _ := json.Marshal(map[string]interface{}{
		"title": "Wells", "description": "water", "target": "3", "deadline": now.Unix() + 3600, "image": "https://gw/ipfs/Qm1",
	})
	code, env := f.json(t, http.MethodPost, "/api/v1/campaigns", string(body))
	require.Equal(t, http.StatusCreated, code, env.Message)
	require.Len(t, f.contract.created, 1)
	assert.Equal(t, account, f.contract.created[0].Owner)
	assert.Equal(t, "3000000", f.contract.created[0].Target.String())

	code, _ = f.json(t, http.MethodPost, "/api/v1/campaigns", `{"title":"late","target":"1","deadline":1,"image":"x"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	f.session.account = ""
	code, _ = f.json(t, http.MethodPost, "/api/v1/campaigns", string(body))
	assert.Equal(t, http.StatusConflict, code)
}

func TestWalletEndpoints(t *testing.T) {
	f := newFixture(t)
	f.session.account = ""

	code, env := f.json(t, http.MethodGet, "/api/v1/wallet", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"account":"","connected":false,"bound":true}`, string(env.Data))

	code, _ = f.json(t, http.MethodPost, "/api/v1/wallet/connect", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, account, f.session.account)

	f.session.err = wallet.ErrProviderUnavailable
	code, _ = f.json(t, http.MethodPost, "/api/v1/wallet/connect", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestUploadAsset(t *testing.T) {
	f := newFixture(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "cover.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png"))
	require.NoError(t, mw.WriteField("title", "Wells"))
	require.NoError(t, mw.Close())

	code, env := f.do(t, http.MethodPost, "/api/v1/assets", &body, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.JSONEq(t, `{"cid":"Qmcover.png","url":"https://gw/ipfs/Qmcover.png","metadataUrl":"https://gw/ipfs/QmWells.json"}`, string(env.Data))

	code, _ = f.do(t, http.MethodPost, "/api/v1/assets", strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNotificationsAndMonitor(t *testing.T) {
	f := newFixture(t)
	f.feed.Notify("hello", notify.SeverityInfo)

	code, env := f.json(t, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, code)
	var items []notify.Notification
	require.NoError(t, json.Unmarshal(env.Data, &items))
	require.NotEmpty(t, items)
	assert.Equal(t, "hello", items[len(items)-1].Message)

	code, _ = f.json(t, http.MethodGet, "/api/v1/monitor", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRefreshEndpoint(t *testing.T) {
	f := newFixture(t)
	code, env := f.json(t, http.MethodPost, "/api/v1/campaigns/refresh", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"total":2,"open":1,"closed":1}`, string(env.Data))
}

func (f *fixture) raw(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestCrossOriginDonateRefused(t *testing.T) {
	f := newFixtureWith(t, func(d *Deps) {
		d.AllowedOrigins = []string{"http://localhost:3000"}
	})

	tests := []struct {
		name    string
		headers map[string]string
		code    int
	}{
		{"text/plain without origin", map[string]string{"Content-Type": "text/plain"}, http.StatusUnsupportedMediaType},
		{"text/plain from foreign origin", map[string]string{"Content-Type": "text/plain", "Origin": "https://evil.example"}, http.StatusForbidden},
		{"json from foreign origin", map[string]string{"Content-Type": "application/json", "Origin": "https://evil.example"}, http.StatusForbidden},
		{"form from foreign origin", map[string]string{"Content-Type": "application/x-www-form-urlencoded", "Origin": "https://evil.example"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		w := f.raw(http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`, tt.headers)
		assert.Equal(t, tt.code, w.Code, tt.name)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"), tt.name)
	}
	assert.Empty(t, f.contract.donations)

	preflight := f.raw(http.MethodOptions, "/api/v1/campaigns/0/donate", "", map[string]string{
		"Origin":                        "https://evil.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusForbidden, preflight.Code)
	assert.Empty(t, preflight.Header().Get("Access-Control-Allow-Origin"))

	preflight = f.raw(http.MethodOptions, "/api/v1/campaigns/0/donate", "", map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Equal(t, "http://localhost:3000", preflight.Header().Get("Access-Control-Allow-Origin"))

	w := f.raw(http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`, map[string]string{
		"Content-Type": "application/json",
		"Origin":       "http://localhost:3000",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Len(t, f.contract.donations, 1)

	// 读接口对未知来源不回显 CORS 头
	w = f.raw(http.MethodGet, "/api/v1/campaigns", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteRoutesRequireToken(t *testing.T) {
	f := newFixtureWith(t, func(d *Deps) {
		d.APIToken = "s3cret"
	})

	w := f.raw(http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`, map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.raw(http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, f.contract.donations)

	w = f.raw(http.MethodPost, "/api/v1/campaigns/0/donate", `{"amount":"10"}`, map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer s3cret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, f.contract.donations, 1)

	// 读接口不需要 token
	w = f.raw(http.MethodGet, "/api/v1/campaigns/0", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetDonators(t *testing.T) {
	f := newFixture(t)

	code, env := f.json(t, http.MethodGet, "/api/v1/campaigns/1/donators", "")
	require.Equal(t, http.StatusOK, code, env.Message)
	var resp struct {
		CampaignID int `json:"campaignId"`
		Donations  []struct {
			Donator string `json:"donator"`
			Amount  string `json:"amount"`
			Display string `json:"display"`
		} `json:"donations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 1, resp.CampaignID)
	require.Len(t, resp.Donations, 1)
	assert.Equal(t, common.HexToAddress(account).Hex(), resp.Donations[0].Donator)
	assert.Equal(t, "3000000", resp.Donations[0].Amount)
	assert.Equal(t, "3", resp.Donations[0].Display)

	code, _ = f.json(t, http.MethodGet, "/api/v1/campaigns/2/donators", "")
	assert.Equal(t, http.StatusNotFound, code)

	f = newFixtureWith(t, func(d *Deps) {
		d.Donators = fakeDonators{err: chain.ErrNotBound}
	})
	code, _ = f.json(t, http.MethodGet, "/api/v1/campaigns/0/donators", "")
	assert.Equal(t, http.StatusConflict, code)
}
