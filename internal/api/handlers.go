package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pongpong-zigzag/qxmr-arcade-go/internal/store"
)

func (s *Server) getOrCreateUser(walletid string) (*store.User, bool, error) {
	user, err := s.db.GetUser(walletid)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		return user, false, nil
	}
	user, err = s.db.CreateUser(walletid)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

// resetDailyGamesIfStale grants the daily free entitlement when the wallet
// has never played or last played on an earlier date. Unparseable
// lastplayed values count as stale.
func (s *Server) resetDailyGamesIfStale(user *store.User) (*store.User, error) {
	today := s.opts.Now().Format("2006-01-02")

	if user.LastPlayed != "" {
		if last, err := time.Parse(time.RFC3339, user.LastPlayed); err == nil {
			if last.Format("2006-01-02") == today {
				return user, nil
			}
		}
	}

	return s.db.UpdateUser(user.WalletID, map[string]string{
		"gameleft": fmt.Sprintf("%d", FreeGamesPerDay),
	})
}

// handleGetUser returns the wallet's record, creating it on first contact
// and applying the daily free-game reset.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	var walletid string
	if r.Method == http.MethodPost {
		var req GetUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
			return
		}
		walletid = req.WalletID
	} else {
		walletid = r.URL.Query().Get("walletid")
	}
	if walletid == "" {
		s.writeError(w, http.StatusBadRequest, "walletid is required")
		return
	}

	user, created, err := s.getOrCreateUser(walletid)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !created {
		user, err = s.resetDailyGamesIfStale(user)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.writeJSON(w, http.StatusOK, GetUserResponse{User: user, Created: created})
}

// handleUpdateUser applies a whitelist-field patch.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.WalletID == "" {
		s.writeError(w, http.StatusBadRequest, "walletid is required")
		return
	}

	fields := map[string]string{}
	set := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	set("amount", req.Amount)
	set("gameleft", req.GameLeft)
	set("lastplayed", req.LastPlayed)
	set("paid", req.Paid)
	set("highest", req.Highest)
	set("col1", req.Col1)
	set("col2", req.Col2)
	set("col3", req.Col3)
	set("leaderboard_access", req.LeaderboardAccess)

	user, err := s.db.UpdateUser(req.WalletID, fields)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		s.writeError(w, http.StatusNotFound, "User not found")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// handleUpdateGameScore records a terminal score. The personal best always
// rises; the ranked amount only moves for wallets holding leaderboard access
// with games remaining, and each such submission consumes one game.
func (s *Server) handleUpdateGameScore(w http.ResponseWriter, r *http.Request) {
	var req GameScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := ValidateGameScoreRequest(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	score, _ := decimal.NewFromString(req.Score.String())

	user, _, err := s.getOrCreateUser(req.WalletID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	gamesLeft := parseInt(user.GameLeft)
	ranked := user.HasLeaderboardAccess() && gamesLeft > 0

	update := map[string]string{
		"highest": decimal.Max(parseDecimal(user.Highest), score).String(),
	}

	if ranked {
		now := s.opts.Now()
		update["lastplayed"] = now.Format(time.RFC3339)
		update["amount"] = decimal.Max(parseDecimal(user.Amount), score).String()
		update["gameleft"] = fmt.Sprintf("%d", gamesLeft-1)

		scoreFloat, _ := score.Float64()
		if err := s.db.UpsertDailyScore(req.WalletID, now.Format("2006-01-02"), scoreFloat); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	updated, err := s.db.UpdateUser(req.WalletID, update)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("score_submitted wallet=%s score=%s ranked=%t", req.WalletID, score.String(), ranked)
	s.writeJSON(w, http.StatusOK, GameScoreResponse{
		Success:            true,
		User:               updated,
		LeaderboardUpdated: user.HasLeaderboardAccess(),
	})
}

// handleTransaction records an on-chain payment and applies what it bought.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if err := ValidateTransactionRequest(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	paid, _ := decimal.NewFromString(req.Paid.String())

	if err := s.db.SaveTransaction(&store.Transaction{
		WalletID: req.WalletID,
		Hash:     req.Hash,
		Paid:     paid.String(),
		Col1:     req.Col1,
		Col2:     req.Col2,
	}); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	user, _, err := s.getOrCreateUser(req.WalletID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	newPaid := parseDecimal(user.Paid).Add(paid)
	update := map[string]string{"paid": newPaid.String()}

	resp := TransactionResponse{
		Success:          true,
		TransactionSaved: true,
		UserPaidUpdated:  newPaid.String(),
	}

	switch {
	case req.Col1 == ProductLeaderboard && paid.GreaterThanOrEqual(decimal.NewFromInt(LeaderboardPrice)):
		update["leaderboard_access"] = "1"
		resp.LeaderboardAccessGranted = true

	case req.Col1 == ProductGamePurchase && paid.GreaterThanOrEqual(decimal.NewFromInt(GamePrice)):
		gamesAdded := int(paid.Div(decimal.NewFromInt(GamePrice)).IntPart())
		remaining := parseInt(user.GameLeft) + gamesAdded
		update["gameleft"] = fmt.Sprintf("%d", remaining)
		resp.GamesAdded = gamesAdded
		resp.GamesRemaining = remaining
	}

	if _, err := s.db.UpdateUser(req.WalletID, update); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Printf("transaction_recorded wallet=%s hash=%s paid=%s product=%s access_granted=%t games_added=%d",
		req.WalletID, req.Hash, paid.String(), req.Col1, resp.LeaderboardAccessGranted, resp.GamesAdded)
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStartGame reports the entitlement decision. Play is free: the call
// never blocks a session, it only surfaces the remaining paid games.
func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	var req StartGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.WalletID == "" {
		s.writeError(w, http.StatusBadRequest, "walletid is required")
		return
	}

	user, _, err := s.getOrCreateUser(req.WalletID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, StartGameResponse{
		Success:        true,
		CanPlay:        true,
		GamesRemaining: parseInt(user.GameLeft),
		User:           user,
	})
}

// handleBuyGames credits play sessions directly (legacy purchase path kept
// for operator tooling; on-chain purchases go through /transaction).
func (s *Server) handleBuyGames(w http.ResponseWriter, r *http.Request) {
	var req BuyGamesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}
	if req.WalletID == "" {
		s.writeError(w, http.StatusBadRequest, "walletid is required")
		return
	}
	if req.Games <= 0 {
		req.Games = 1
	}
	perGame := parseDecimal(req.Paid.String())
	if perGame.IsZero() {
		perGame = decimal.NewFromInt(GamePrice)
	}
	totalPaid := perGame.Mul(decimal.NewFromInt(int64(req.Games)))

	user, _, err := s.getOrCreateUser(req.WalletID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	remaining := parseInt(user.GameLeft) + req.Games
	updated, err := s.db.UpdateUser(req.WalletID, map[string]string{
		"gameleft": fmt.Sprintf("%d", remaining),
		"paid":     parseDecimal(user.Paid).Add(totalPaid).String(),
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, BuyGamesResponse{
		Success:        true,
		GamesAdded:     req.Games,
		TotalPaid:      totalPaid.String(),
		GamesRemaining: remaining,
		User:           updated,
	})
}

// handleLeaderboard returns the ranked top 100, the ranked-user total, and
// the caller's position when a walletid is supplied.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	walletid := r.URL.Query().Get("walletid")
	if r.Method == http.MethodPost {
		var req GetUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.WalletID != "" {
			walletid = req.WalletID
		}
	}

	total, err := s.db.CountRankedUsers()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	top, err := s.db.TopUsers(100)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if top == nil {
		top = []store.User{}
	}

	var ranking *UserRanking
	if walletid != "" {
		user, err := s.db.GetUser(walletid)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if user != nil && user.HasLeaderboardAccess() {
			rank, err := s.db.UserRank(walletid)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			ranking = &UserRanking{Rank: rank, User: user}
		}
	}

	s.writeJSON(w, http.StatusOK, LeaderboardResponse{
		TopUsers:    top,
		TotalUsers:  total,
		UserRanking: ranking,
	})
}

// handleDailyWinner returns the highest scorer for a date (today if unset).
func (s *Server) handleDailyWinner(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.opts.Now().Format("2006-01-02")
	}

	winner, err := s.db.DailyWinner(date)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DailyWinnerResponse{Success: true, Date: date, PrizeAmount: DailyPrizeAmount}
	if winner != nil {
		user, err := s.db.GetUser(winner.WalletID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp.Winner = &DailyWinnerEntry{WalletID: winner.WalletID, Score: winner.Score, User: user}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.db.ListUsers()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if users == nil {
		users = []store.User{}
	}
	s.writeJSON(w, http.StatusOK, AdminUsersResponse{Users: users})
}

func (s *Server) handleAdminTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.db.ListTransactions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if txs == nil {
		txs = []store.Transaction{}
	}
	s.writeJSON(w, http.StatusOK, AdminTransactionsResponse{Transactions: txs})
}

func (s *Server) handleAdminResetBalances(w http.ResponseWriter, r *http.Request) {
	n, err := s.db.ResetBalances()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("balances_reset affected=%d", n)
	s.writeJSON(w, http.StatusOK, AdminResetResponse{
		Success:      true,
		Message:      fmt.Sprintf("Reset %d users' balances to 0", n),
		AffectedRows: n,
	})
}
