package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/regdesk/internal/auth"
	"github.com/JonMunkholm/regdesk/internal/config"
	"github.com/JonMunkholm/regdesk/internal/core"
	"github.com/JonMunkholm/regdesk/internal/filestore"
	"github.com/JonMunkholm/regdesk/internal/mailer"
	"github.com/JonMunkholm/regdesk/internal/otp"
	"github.com/JonMunkholm/regdesk/internal/store"
)

type testDeps struct {
	server  *Server
	records *store.Memory
	files   *filestore.Memory
	mail    *mailer.Memory
	tokens  *auth.Tokens
	cfg     *config.Config
}

func newTestServer(t *testing.T, mutateCfg func(*config.Config)) *testDeps {
	t.Helper()

	cfg := &config.Config{
		Environment: "development",
		Upload: config.UploadConfig{
			MaxFileSize:           3 << 20,
			MaxMailAttachmentSize: 10 << 20,
			MaxMailAttachments:    5,
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-signing-key",
			TokenTTL:  time.Hour,
			Issuer:    "regdesk",
			AccessKey: "secret-key",
		},
		OTP: config.OTPConfig{
			TTL:         10 * time.Minute,
			AdminEmails: []string{"admin@example.com"},
		},
		Files: config.FileStoreConfig{SignedURLTTL: 15 * time.Minute},
	}
	if mutateCfg != nil {
		mutateCfg(cfg)
	}

	records := store.NewMemory()
	files := filestore.NewMemory()
	transport := &mailer.Memory{}

	registry := mailer.NewRegistry(config.SMTPConfig{})
	registry.Register("gmail", transport, "team@example.com")

	logger := slog.Default()
	service := core.NewService(records, files, registry, "team@example.com", "KMUN'25 Team", logger)
	otps := otp.NewService(otp.NewMemoryStore(), transport, "team@example.com", "KMUN'25 Team", cfg.OTP.AdminEmails, cfg.OTP.TTL, logger)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	return &testDeps{
		server:  NewServer(cfg, service, otps, tokens, files),
		records: records,
		files:   files,
		mail:    transport,
		tokens:  tokens,
		cfg:     cfg,
	}
}

func (d *testDeps) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	d.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func submissionBody() map[string]any {
	return map[string]any{
		"name":             "Alice Kumar",
		"email":            "alice@example.com",
		"phone":            "9876543210",
		"college":          "PSG Tech",
		"department":       "CSE",
		"year":             2,
		"munsParticipated": 4,
		"munsWithAwards":   1,
		"munsChaired":      0,
		"committees":       []string{"UNSC"},
		"positions":        []string{"Chairperson"},
	}
}

func (d *testDeps) submit(t *testing.T, mutate func(map[string]any)) string {
	t.Helper()

	body := submissionBody()
	if mutate != nil {
		mutate(body)
	}

	rec := d.do(t, http.MethodPost, "/api/submit", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeBody(t, rec, &resp)
	if resp.Data.ID == "" {
		t.Fatal("submit response missing id")
	}
	return resp.Data.ID
}

func TestHealth(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodGet, "/api/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp envelope
	decodeBody(t, rec, &resp)
	if resp.Success || resp.Message != "API endpoint not found" {
		t.Errorf("body = %+v", resp)
	}
}

func TestSecurityHeaders(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodGet, "/healthz", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}

func TestSubmitJSON(t *testing.T) {
	d := newTestServer(t, nil)
	id := d.submit(t, nil)

	rec := d.do(t, http.MethodGet, "/api/admin/registrations/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data core.Registration `json:"data"`
	}
	decodeBody(t, rec, &resp)
	if resp.Data.Email != "alice@example.com" || resp.Data.Status != core.StatusPending {
		t.Errorf("registration = %+v", resp.Data)
	}
}

func TestSubmitJSONValidation(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodPost, "/api/submit", map[string]any{"name": "No Fields"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp envelope
	decodeBody(t, rec, &resp)
	if resp.Success {
		t.Error("success true on validation failure")
	}
	if !strings.Contains(resp.Message, "email") {
		t.Errorf("message %q does not name the missing field", resp.Message)
	}
}

func TestSubmitMultipart(t *testing.T) {
	d := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"name": "Bob Raman", "email": "bob@example.com", "phone": "9876500000",
		"college": "Kumaraguru College", "department": "ECE", "year": "3",
		"committees": "UNSC", "positions": "Director",
	} {
		mw.WriteField(field, value)
	}

	part, err := mw.CreatePart(textprotoHeader("idCard", "id.pdf", "application/pdf"))
	if err != nil {
		t.Fatalf("creating file part: %v", err)
	}
	part.Write([]byte("%PDF-1.4 test"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	d.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if d.files.Len() != 1 {
		t.Errorf("file store holds %d objects, want 1", d.files.Len())
	}
}

func TestSubmitMultipartRejectsNonPDF(t *testing.T) {
	d := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "Bob")

	part, _ := mw.CreatePart(textprotoHeader("idCard", "id.exe", "application/octet-stream"))
	part.Write([]byte("MZ"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/submit", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	d.server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp envelope
	decodeBody(t, rec, &resp)
	if resp.Message != "Only PDF files are allowed" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestValidationRules(t *testing.T) {
	d := newTestServer(t, nil)

	for _, path := range []string{"/api/submit/validation-rules", "/api/validation-rules"} {
		rec := d.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s returned %d", path, rec.Code)
		}

		var resp struct {
			Data struct {
				Committees []string `json:"committees"`
				Positions  []string `json:"positions"`
			} `json:"data"`
		}
		decodeBody(t, rec, &resp)
		if len(resp.Data.Committees) != 6 || len(resp.Data.Positions) != 3 {
			t.Errorf("%s rules = %+v", path, resp.Data)
		}
	}
}

func TestListRegistrationsPagination(t *testing.T) {
	d := newTestServer(t, nil)
	d.submit(t, nil)
	d.submit(t, func(m map[string]any) { m["email"] = "bob@example.com" })
	d.submit(t, func(m map[string]any) { m["email"] = "carol@example.com" })

	rec := d.do(t, http.MethodGet, "/api/admin/registrations?page=1&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Success    bool                `json:"success"`
		Data       []core.Registration `json:"data"`
		Pagination core.Pagination     `json:"pagination"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Success || len(resp.Data) != 2 {
		t.Fatalf("page = %d records, success %v", len(resp.Data), resp.Success)
	}
	if resp.Pagination.TotalRecords != 3 || !resp.Pagination.HasNext {
		t.Errorf("pagination = %+v", resp.Pagination)
	}
}

func TestUpdateAndDeleteRegistration(t *testing.T) {
	d := newTestServer(t, nil)
	id := d.submit(t, nil)

	rec := d.do(t, http.MethodPut, "/api/admin/registrations/"+id, map[string]any{"status": core.StatusApproved})
	if rec.Code != http.StatusOK {
		t.Fatalf("update returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = d.do(t, http.MethodDelete, "/api/admin/registrations/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d", rec.Code)
	}

	rec = d.do(t, http.MethodGet, "/api/admin/registrations/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete returned %d", rec.Code)
	}
	var resp envelope
	decodeBody(t, rec, &resp)
	if resp.Message != "Registration not found" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestBulkActionEndpoint(t *testing.T) {
	d := newTestServer(t, nil)
	a := d.submit(t, nil)
	b := d.submit(t, func(m map[string]any) { m["email"] = "bob@example.com" })

	rec := d.do(t, http.MethodPost, "/api/admin/registrations/bulk-action", map[string]any{
		"action":          "approve",
		"registrationIds": []string{a, b, "missing"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool             `json:"success"`
		Results core.BulkOutcome `json:"results"`
	}
	decodeBody(t, rec, &resp)
	if resp.Results.Success != 2 || resp.Results.Failed != 1 {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestBulkActionRequiresFields(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodPost, "/api/admin/registrations/bulk-action", map[string]any{"action": "approve"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestExportEndpoint(t *testing.T) {
	d := newTestServer(t, nil)
	d.submit(t, nil)

	rec := d.do(t, http.MethodGet, "/api/admin/export?format=csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "registrations_") {
		t.Errorf("content disposition = %q", cd)
	}

	rec = d.do(t, http.MethodGet, "/api/admin/export", nil)
	var resp struct {
		Success      bool `json:"success"`
		TotalRecords int  `json:"totalRecords"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Success || resp.TotalRecords != 1 {
		t.Errorf("json export = %+v", resp)
	}
}

func TestStatsEndpoint(t *testing.T) {
	d := newTestServer(t, nil)
	d.submit(t, nil)

	rec := d.do(t, http.MethodGet, "/api/admin/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data core.Stats `json:"data"`
	}
	decodeBody(t, rec, &resp)
	if resp.Data.Total != 1 || resp.Data.ByStatus[core.StatusPending] != 1 {
		t.Errorf("stats = %+v", resp.Data)
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodGet, "/api/admin/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data map[string]mailer.Template `json:"data"`
	}
	decodeBody(t, rec, &resp)
	if _, ok := resp.Data["bulk"]; !ok {
		t.Errorf("templates = %v", resp.Data)
	}
}

func TestSendMailEndpoint(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodPost, "/api/admin/send-mail", map[string]any{
		"recipients": "delegate@example.com",
		"subject":    "Allocation",
		"message":    "Check the portal",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool            `json:"success"`
		Results core.MailResult `json:"results"`
	}
	decodeBody(t, rec, &resp)
	if !resp.Success || resp.Results.Sent != 1 {
		t.Errorf("response = %+v", resp)
	}
	if len(d.mail.Sent) != 1 || d.mail.Sent[0].To != "delegate@example.com" {
		t.Errorf("sent = %+v", d.mail.Sent)
	}
}

func TestSendMailRequiresFields(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodPost, "/api/admin/send-mail", map[string]any{"subject": "no recipients"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}

	rec = d.do(t, http.MethodPost, "/api/admin/send-mail", map[string]any{
		"recipients":   "a@example.com",
		"subject":      "s",
		"message":      "m",
		"smtpProvider": "sendgrid",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown provider status = %d", rec.Code)
	}
}

func TestFileDownloadRedirect(t *testing.T) {
	d := newTestServer(t, nil)
	stored, err := d.files.Upload(context.Background(), []byte("pdf"), "1_id-card_scan.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	rec := d.do(t, http.MethodGet, "/api/admin/file/1_id-card_scan.pdf", nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "signed=1") {
		t.Errorf("location = %q", loc)
	}

	// A full stored URL works too, url-encoded in the path.
	rec = d.do(t, http.MethodGet, "/api/admin/file/"+url.PathEscape(stored), nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("url form status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFileDownloadFallsBackToStoredURL(t *testing.T) {
	d := newTestServer(t, nil)

	// Nothing stored, so signing fails; a URL input falls back to itself.
	rec := d.do(t, http.MethodGet, "/api/admin/file/"+url.PathEscape("memory://files/gone.pdf"), nil)
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "memory://files/gone.pdf" {
		t.Errorf("location = %q", loc)
	}
}

func TestVerifyAccessKey(t *testing.T) {
	d := newTestServer(t, nil)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"valid", map[string]any{"accessKey": "secret-key"}, http.StatusOK},
		{"invalid", map[string]any{"accessKey": "wrong"}, http.StatusBadRequest},
		{"missing", map[string]any{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := d.do(t, http.MethodPost, "/api/admin/verify-access-key", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

var otpCodePattern = regexp.MustCompile(`\d{6}`)

func TestOTPLoginFlow(t *testing.T) {
	d := newTestServer(t, nil)

	rec := d.do(t, http.MethodPost, "/api/admin/send-otp", map[string]any{"email": "intruder@example.com"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unauthorized send-otp returned %d", rec.Code)
	}

	rec = d.do(t, http.MethodPost, "/api/admin/send-otp", map[string]any{"email": "admin@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("send-otp returned %d: %s", rec.Code, rec.Body.String())
	}

	code := otpCodePattern.FindString(d.mail.Sent[0].HTMLBody)
	if code == "" {
		t.Fatal("no code in the otp mail")
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	rec = d.do(t, http.MethodPost, "/api/admin/verify-otp", map[string]any{"email": "admin@example.com", "otp": wrong})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code returned %d", rec.Code)
	}

	rec = d.do(t, http.MethodPost, "/api/admin/verify-otp", map[string]any{"email": "admin@example.com", "otp": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-otp returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp verifyOTPResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("verify-otp response missing token")
	}
	claims, err := d.tokens.Validate(resp.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("token email = %q", claims.Email)
	}

	rec = d.do(t, http.MethodPost, "/api/admin/verify-otp", map[string]any{"email": "admin@example.com", "otp": code})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused code returned %d, want 400", rec.Code)
	}
}

func TestBearerAuthEnforced(t *testing.T) {
	d := newTestServer(t, func(cfg *config.Config) { cfg.Auth.Required = true })

	rec := d.do(t, http.MethodGet, "/api/admin/registrations", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request returned %d", rec.Code)
	}

	token, err := d.tokens.Issue("admin@example.com")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/registrations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	d.server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated request returned %d: %s", rr.Code, rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/registrations", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	d.server.Router().ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("garbage token returned %d", rr.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first requests inside the budget denied")
	}
	if rl.allow("1.2.3.4") {
		t.Error("request over the budget allowed")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("separate ip shares the budget")
	}
}

func TestParseRecipients(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want core.RecipientSpec
	}{
		{"quoted single", `"a@example.com"`, core.RecipientSpec{Single: "a@example.com"}},
		{"array", `["all"]`, core.RecipientSpec{List: []string{"all"}}},
		{"raw unquoted", `a@example.com`, core.RecipientSpec{Single: "a@example.com"}},
		{"empty", ``, core.RecipientSpec{}},
		{"null", `null`, core.RecipientSpec{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRecipients(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("parseRecipients(%q) error: %v", tt.raw, err)
			}
			if got.Single != tt.want.Single || len(got.List) != len(tt.want.List) {
				t.Errorf("parseRecipients(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func textprotoHeader(field, filename, contentType string) map[string][]string {
	return map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)},
		"Content-Type":        {contentType},
	}
}
