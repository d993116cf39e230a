package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/store"
)

func newTestServer(t *testing.T, opts Options) (*Server, http.Handler) {
	t.Helper()
	db, err := store.NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := NewServer(db, opts)
	return s, s.Routes()
}

func wallet(letter string) string {
	return strings.Repeat(letter, 60)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func TestGetUserCreatesOnFirstContact(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec := postJSON(t, h, "/get_user", GetUserRequest{WalletID: wallet("A")})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[GetUserResponse](t, rec)
	if !resp.Created {
		t.Errorf("expected created=true on first contact")
	}
	if resp.User == nil || resp.User.WalletID != wallet("A") {
		t.Errorf("user = %+v", resp.User)
	}

	rec = postJSON(t, h, "/get_user", GetUserRequest{WalletID: wallet("A")})
	resp = decode[GetUserResponse](t, rec)
	if resp.Created {
		t.Errorf("expected created=false on second contact")
	}
}

func TestGetUserDailyReset(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s, h := newTestServer(t, Options{Now: func() time.Time { return now }})

	if _, err := s.db.CreateUser(wallet("A")); err != nil {
		t.Fatal(err)
	}

	// Played yesterday with no games left: the free entitlement comes back.
	yesterday := now.AddDate(0, 0, -1).Format(time.RFC3339)
	if _, err := s.db.UpdateUser(wallet("A"), map[string]string{
		"gameleft": "0", "lastplayed": yesterday,
	}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h, "/get_user", GetUserRequest{WalletID: wallet("A")})
	resp := decode[GetUserResponse](t, rec)
	if resp.User.GameLeft != fmt.Sprintf("%d", FreeGamesPerDay) {
		t.Errorf("gameleft = %s, want %d after stale-day reset", resp.User.GameLeft, FreeGamesPerDay)
	}

	// Already played today: no reset, purchased games stay as-is.
	if _, err := s.db.UpdateUser(wallet("A"), map[string]string{
		"gameleft": "7", "lastplayed": now.Format(time.RFC3339),
	}); err != nil {
		t.Fatal(err)
	}
	rec = postJSON(t, h, "/get_user", GetUserRequest{WalletID: wallet("A")})
	resp = decode[GetUserResponse](t, rec)
	if resp.User.GameLeft != "7" {
		t.Errorf("gameleft = %s, want 7 when already played today", resp.User.GameLeft)
	}
}

func TestUpdateGameScoreWithoutAccess(t *testing.T) {
	_, h := newTestServer(t, Options{})

	rec := postJSON(t, h, "/update_game_score", GameScoreRequest{
		WalletID: wallet("A"), Score: "1500",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[GameScoreResponse](t, rec)
	if !resp.Success {
		t.Errorf("expected success")
	}
	if resp.LeaderboardUpdated {
		t.Errorf("no-access wallet must not rank")
	}
	// Personal best saved even without ranked inclusion.
	if resp.User.Highest != "1500" {
		t.Errorf("highest = %s, want 1500", resp.User.Highest)
	}
	if resp.User.Amount != "0" {
		t.Errorf("amount = %s, want 0 without access", resp.User.Amount)
	}
	if resp.User.LastPlayed != "" {
		t.Errorf("lastplayed stamped without a ranked submission")
	}
}

func TestUpdateGameScoreRanked(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s, h := newTestServer(t, Options{Now: func() time.Time { return now }})

	if _, err := s.db.CreateUser(wallet("A")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.UpdateUser(wallet("A"), map[string]string{
		"leaderboard_access": "1", "gameleft": "2", "amount": "900",
	}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, h, "/update_game_score", GameScoreRequest{
		WalletID: wallet("A"), Score: "1500",
	})
	resp := decode[GameScoreResponse](t, rec)
	if !resp.LeaderboardUpdated {
		t.Errorf("expected leaderboard_updated")
	}
	if resp.User.Amount != "1500" || resp.User.Highest != "1500" {
		t.Errorf("amount=%s highest=%s, want 1500/1500", resp.User.Amount, resp.User.Highest)
	}
	if resp.User.GameLeft != "1" {
		t.Errorf("gameleft = %s, want 1 after consuming a game", resp.User.GameLeft)
	}
	if resp.User.LastPlayed != now.Format(time.RFC3339) {
		t.Errorf("lastplayed = %s", resp.User.LastPlayed)
	}

	// A lower ranked score never lowers the stored amount.
	rec = postJSON(t, h, "/update_game_score", GameScoreRequest{
		WalletID: wallet("A"), Score: "400",
	})
	resp = decode[GameScoreResponse](t, rec)
	if resp.User.Amount != "1500" {
		t.Errorf("amount dropped to %s", resp.User.Amount)
	}
	if resp.User.GameLeft != "0" {
		t.Errorf("gameleft = %s, want 0", resp.User.GameLeft)
	}

	// Out of games: highest still rises, ranked amount frozen.
	rec = postJSON(t, h, "/update_game_score", GameScoreRequest{
		WalletID: wallet("A"), Score: "2000",
	})
	resp = decode[GameScoreResponse](t, rec)
	if resp.User.Highest != "2000" {
		t.Errorf("highest = %s, want 2000", resp.User.Highest)
	}
	if resp.User.Amount != "1500" {
		t.Errorf("amount = %s, want frozen 1500 with no games left", resp.User.Amount)
	}
}

func TestUpdateGameScoreRejectsBadInput(t *testing.T) {
	_, h := newTestServer(t, Options{})

	cases := []GameScoreRequest{
		{WalletID: "", Score: "100"},
		{WalletID: wallet("A"), Score: ""},
		{WalletID: wallet("A"), Score: "-5"},
	}
	for _, c := range cases {
		rec := postJSON(t, h, "/update_game_score", c)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("req %+v: status = %d, want 400", c, rec.Code)
		}
	}
}

func TestTransactionLeaderboardPayment(t *testing.T) {
	s, h := newTestServer(t, Options{})

	rec := postJSON(t, h, "/transaction", TransactionRequest{
		WalletID: wallet("A"),
		Hash:     strings.Repeat("a", 60),
		Paid:     "10000",
		Col1:     ProductLeaderboard,
	})
	resp := decode[TransactionResponse](t, rec)
	if !resp.LeaderboardAccessGranted {
		t.Errorf("expected access grant at exact price")
	}
	if resp.UserPaidUpdated != "10000" {
		t.Errorf("paid = %s", resp.UserPaidUpdated)
	}

	u, _ := s.db.GetUser(wallet("A"))
	if !u.HasLeaderboardAccess() {
		t.Errorf("access flag not persisted")
	}

	txs, _ := s.db.ListTransactions()
	if len(txs) != 1 || txs[0].Col1 != ProductLeaderboard {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestTransactionGamePurchase(t *testing.T) {
	s, h := newTestServer(t, Options{})

	rec := postJSON(t, h, "/transaction", TransactionRequest{
		WalletID: wallet("B"),
		Hash:     strings.Repeat("b", 60),
		Paid:     "1000000",
		Col1:     ProductGamePurchase,
	})
	resp := decode[TransactionResponse](t, rec)
	if resp.GamesAdded != 2 || resp.GamesRemaining != 2 {
		t.Errorf("games added=%d remaining=%d, want 2/2", resp.GamesAdded, resp.GamesRemaining)
	}
	u, _ := s.db.GetUser(wallet("B"))
	if u.GameLeft != "2" {
		t.Errorf("gameleft = %s", u.GameLeft)
	}
}

func TestTransactionUnderpaidGrantsNothing(t *testing.T) {
	s, h := newTestServer(t, Options{})

	rec := postJSON(t, h, "/transaction", TransactionRequest{
		WalletID: wallet("C"),
		Hash:     strings.Repeat("c", 60),
		Paid:     "9999",
		Col1:     ProductLeaderboard,
	})
	resp := decode[TransactionResponse](t, rec)
	if resp.LeaderboardAccessGranted {
		t.Errorf("underpaid transaction granted access")
	}
	if !resp.TransactionSaved {
		t.Errorf("payment record must still be saved")
	}
	u, _ := s.db.GetUser(wallet("C"))
	if u.Paid != "9999" {
		t.Errorf("paid = %s, want 9999 recorded regardless", u.Paid)
	}
}

func TestLeaderboardRanking(t *testing.T) {
	s, h := newTestServer(t, Options{})

	seed := []struct {
		w      string
		amount string
		access string
	}{
		{wallet("A"), "300", "1"},
		{wallet("B"), "500", "1"},
		{wallet("C"), "100", "1"},
		{wallet("D"), "900", "0"}, // high score but unranked
	}
	for _, sd := range seed {
		if _, err := s.db.CreateUser(sd.w); err != nil {
			t.Fatal(err)
		}
		if _, err := s.db.UpdateUser(sd.w, map[string]string{"amount": sd.amount, "leaderboard_access": sd.access}); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/leaderboard?walletid="+wallet("A"), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := decode[LeaderboardResponse](t, rec)
	if resp.TotalUsers != 3 {
		t.Errorf("total = %d, want 3", resp.TotalUsers)
	}
	if len(resp.TopUsers) != 3 || resp.TopUsers[0].WalletID != wallet("B") {
		t.Errorf("top users = %+v", resp.TopUsers)
	}
	if resp.UserRanking == nil || resp.UserRanking.Rank != 2 {
		t.Errorf("ranking = %+v, want rank 2", resp.UserRanking)
	}

	// An unranked caller gets the board but no personal ranking.
	req = httptest.NewRequest(http.MethodGet, "/leaderboard?walletid="+wallet("D"), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp = decode[LeaderboardResponse](t, rec)
	if resp.UserRanking != nil {
		t.Errorf("unranked caller got ranking %+v", resp.UserRanking)
	}
}

func TestDailyWinner(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s, h := newTestServer(t, Options{Now: func() time.Time { return now }})

	if _, err := s.db.CreateUser(wallet("A")); err != nil {
		t.Fatal(err)
	}
	if err := s.db.UpsertDailyScore(wallet("A"), "2026-08-29", 777); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/daily_winner", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := decode[DailyWinnerResponse](t, rec)
	if resp.Winner == nil || resp.Winner.WalletID != wallet("A") || resp.Winner.Score != 777 {
		t.Errorf("winner = %+v", resp.Winner)
	}
	if resp.PrizeAmount != DailyPrizeAmount {
		t.Errorf("prize = %d", resp.PrizeAmount)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	_, h := newTestServer(t, Options{AdminToken: "sekrit"})

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("no token: status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want 200", rec.Code)
	}
}

func TestAdminRoutesAbsentWithoutToken(t *testing.T) {
	_, h := newTestServer(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when admin disabled", rec.Code)
	}
}

func TestAdminResetBalances(t *testing.T) {
	s, h := newTestServer(t, Options{AdminToken: "sekrit"})

	if _, err := s.db.CreateUser(wallet("A")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.UpdateUser(wallet("A"), map[string]string{"amount": "42"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/reset-balances", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	resp := decode[AdminResetResponse](t, rec)
	if resp.AffectedRows != 1 {
		t.Errorf("affected = %d, want 1", resp.AffectedRows)
	}
	u, _ := s.db.GetUser(wallet("A"))
	if u.Amount != "0" {
		t.Errorf("amount = %s, want 0", u.Amount)
	}
}

func TestCORSAllowlist(t *testing.T) {
	_, h := newTestServer(t, Options{AllowedOrigins: []string{"https://arcade.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/get_user", nil)
	req.Header.Set("Origin", "https://arcade.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://arcade.example" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/get_user", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin echoed: %q", got)
	}
}
