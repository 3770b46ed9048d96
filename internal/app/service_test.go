package app

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"ballotbox/internal/catalog"
	"ballotbox/internal/config"
	"ballotbox/internal/domain"
	"ballotbox/internal/logging"
	"ballotbox/internal/ports"
)

const (
	sessionID    = "s1"
	freeLunch    = "20202020-bbbb-4bbb-8bbb-000000000008"
	stadiumTour  = "20202020-bbbb-4bbb-8bbb-000000000007"
	slowNewsDay  = "ffffffff-ffff-4fff-8fff-ffffffffffff"
	auditSeason  = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	capital      = "capital-district"
	harborWard   = "harbor-ward"
	suburbs      = "suburbs"
	industrial   = "industrial-belt"
	railwaysCard = "10101010-aaaa-4aaa-8aaa-000000000001"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	svc := NewService(store, catalog.Default(), config.Default(), logging.Nop(), rand.New(rand.NewSource(1)))
	svc.SetClock(func() time.Time { return fixedNow })
	return svc, store
}

func startSession(t *testing.T, svc *Service, players ...string) *domain.SessionState {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateSession(ctx, sessionID, players[0], players); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	for _, p := range players {
		if _, err := svc.SetReady(ctx, sessionID, p, true); err != nil {
			t.Fatalf("SetReady(%s): %v", p, err)
		}
	}
	st, err := svc.StartTurn(ctx, sessionID, players[0])
	if err != nil {
		t.Fatalf("StartTurn: %v", err)
	}
	return st
}

// answerOffered resolves the current turn's prompt with answer A.
func answerOffered(t *testing.T, svc *Service, st *domain.SessionState) *domain.SessionState {
	t.Helper()
	turn := st.CurrentTurn()
	got, err := svc.ResolveIdeology(context.Background(), TurnAction{sessionID, turn.ActivePlayer, turn.Index}, turn.IdeologyPreview[0], domain.ChoiceA)
	if err != nil {
		t.Fatalf("ResolveIdeology: %v", err)
	}
	return got
}

// offer rewrites the current turn's vote-bank offer and the top of the headline pile.
func offer(t *testing.T, store *memStore, voteBankCardID, headlineID string) {
	t.Helper()
	store.edit(t, sessionID, func(st *domain.SessionState) {
		st.CurrentTurn().VoteBankPreview = []string{voteBankCardID}
		st.Decks[domain.DeckHeadline].Cards = []string{headlineID}
	})
}

func setPlayer(t *testing.T, store *memStore, playerID string, fn func(p *domain.Player)) {
	t.Helper()
	store.edit(t, sessionID, func(st *domain.SessionState) {
		p, ok := st.Player(playerID)
		if !ok {
			t.Fatalf("player %s missing", playerID)
		}
		fn(p)
	})
}

func logTypes(entries []domain.ActionLogEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Type)
	}
	return out
}

func TestCreateSessionValidatesRoster(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		host   string
		roster []string
	}{
		{name: "too few", host: "p1", roster: []string{"p1"}},
		{name: "too many", host: "p1", roster: []string{"p1", "p2", "p3", "p4", "p5", "p6"}},
		{name: "duplicate seat", host: "p1", roster: []string{"p1", "p1"}},
		{name: "host not seated", host: "p9", roster: []string{"p1", "p2"}},
		{name: "empty id", host: "p1", roster: []string{"p1", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSession(ctx, "", tt.host, tt.roster)
			if !errors.Is(err, domain.ErrInvalidRoster) {
				t.Fatalf("err = %v, want ErrInvalidRoster", err)
			}
		})
	}

	st, err := svc.CreateSession(ctx, "", "p1", []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if st.Session.ID == "" || st.Session.Status != domain.StatusLobby {
		t.Fatalf("session = %+v", st.Session)
	}

	long := strings.Repeat("s", MaxSessionIDLength+1)
	if _, err := svc.CreateSession(ctx, long, "p1", []string{"p1", "p2"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("long session id err = %v, want ErrInvalidInput", err)
	}
}

func TestStartTurnRequiresHostAndReadyPlayers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateSession(ctx, sessionID, "p1", []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SetReady(ctx, sessionID, "p1", true); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.StartTurn(ctx, sessionID, "p2"); !errors.Is(err, ErrNotHost) {
		t.Fatalf("non-host start err = %v", err)
	}
	if _, err := svc.StartTurn(ctx, sessionID, "p1"); !errors.Is(err, domain.ErrPlayersNotReady) {
		t.Fatalf("unready start err = %v", err)
	}
	if _, err := svc.SetReady(ctx, sessionID, "ghost", true); !errors.Is(err, domain.ErrUnknownPlayer) {
		t.Fatalf("unknown player ready err = %v", err)
	}
}

func TestStartTurnOpensFirstTurn(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2", "p3")

	if st.Session.Status != domain.StatusActive {
		t.Fatalf("status = %s", st.Session.Status)
	}
	turn := st.CurrentTurn()
	if turn.Index != 0 || turn.ActivePlayer != "p1" || turn.NeighborReader != "p3" {
		t.Fatalf("turn = %+v", turn)
	}
	if turn.Phase != domain.PhaseAwaitingIdeology || len(turn.IdeologyPreview) != 1 || len(turn.VoteBankPreview) != 3 {
		t.Fatalf("turn offer = %+v", turn)
	}
	for _, dt := range domain.DeckTypes {
		if _, err := st.Deck(dt); err != nil {
			t.Fatalf("deck %s: %v", dt, err)
		}
	}

	want := []string{"PLAYER_READY", "PLAYER_READY", "PLAYER_READY", "SESSION_STARTED", "TURN_START"}
	if diff := cmp.Diff(want, logTypes(store.entries(sessionID))); diff != "" {
		t.Fatalf("log (-want +got):\n%s", diff)
	}

	if _, err := svc.StartTurn(context.Background(), sessionID, "p1"); !errors.Is(err, domain.ErrTurnInProgress) {
		t.Fatalf("second start err = %v", err)
	}
	if _, err := svc.SetReady(context.Background(), sessionID, "p1", false); !errors.Is(err, ErrNotInLobby) {
		t.Fatalf("ready after start err = %v", err)
	}
}

func TestStartTurnPaysPassiveIncomeWithCap(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateSession(ctx, sessionID, "p1", []string{"p1", "p2"}); err != nil {
		t.Fatal(err)
	}
	setPlayer(t, store, "p1", func(p *domain.Player) {
		p.Ready = true
		p.Ideologies = domain.IdeologyTally{domain.Capitalist: 5}
		p.Resources = domain.Bundle{domain.Funds: 10, domain.Media: 1}
	})
	setPlayer(t, store, "p2", func(p *domain.Player) { p.Ready = true })

	st, err := svc.StartTurn(ctx, sessionID, "p1")
	if err != nil {
		t.Fatalf("StartTurn: %v", err)
	}
	p1, _ := st.Player("p1")
	if diff := cmp.Diff(domain.Bundle{domain.Funds: 11, domain.Media: 1}, p1.Resources); diff != "" {
		t.Fatalf("resources (-want +got):\n%s", diff)
	}

	entries := store.entries(sessionID)
	want := []string{"SESSION_STARTED", "TURN_START", "IDEOLOGUE_PASSIVE_GAIN", "RESOURCE_CAP_DISCARD"}
	if diff := cmp.Diff(want, logTypes(entries)); diff != "" {
		t.Fatalf("log (-want +got):\n%s", diff)
	}
	discard := entries[3].Payload
	if discard["source"] != DiscardSourcePassiveIncome || discard["overflow"] != 1 {
		t.Fatalf("discard payload = %v", discard)
	}
}

func TestStartTurnRecoversInterruptedRotation(t *testing.T) {
	svc, store := newTestService(t)
	started := startSession(t, svc, "p1", "p2")
	store.edit(t, sessionID, func(st *domain.SessionState) {
		st.CurrentTurn().Complete(fixedNow)
	})

	st, err := svc.StartTurn(context.Background(), sessionID, "p1")
	if err != nil {
		t.Fatalf("StartTurn: %v", err)
	}
	if cur := st.CurrentTurn(); cur.Index != 1 || cur.ActivePlayer != "p2" || cur.NeighborReader != "p1" {
		t.Fatalf("recovered turn = %+v", cur)
	}
	for _, dt := range domain.DeckTypes {
		if diff := cmp.Diff(started.Decks[dt], st.Decks[dt]); diff != "" {
			t.Fatalf("%s deck reshuffled on recovery (-want +got):\n%s", dt, diff)
		}
	}
}

func TestResolveIdeologyPaysRewardsAndAdvances(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	store.edit(t, sessionID, func(st *domain.SessionState) {
		st.CurrentTurn().IdeologyPreview = []string{railwaysCard}
	})
	ctx := context.Background()
	action := TurnAction{SessionID: sessionID, ActorID: "p1", TurnIndex: 0}

	if _, err := svc.ResolveIdeology(ctx, TurnAction{sessionID, "p2", 0}, railwaysCard, domain.ChoiceA); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("wrong actor err = %v", err)
	}
	if _, err := svc.ResolveIdeology(ctx, action, "10101010-aaaa-4aaa-8aaa-000000000002", domain.ChoiceA); !errors.Is(err, domain.ErrCardNotOffered) {
		t.Fatalf("unoffered card err = %v", err)
	}
	if _, err := svc.ResolveIdeology(ctx, action, railwaysCard, "answer_c"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad choice err = %v", err)
	}
	if _, err := svc.PlaceVoters(ctx, action, freeLunch, capital); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("influence before ideology err = %v", err)
	}

	st, err := svc.ResolveIdeology(ctx, action, railwaysCard, domain.ChoiceB)
	if err != nil {
		t.Fatalf("ResolveIdeology: %v", err)
	}
	p1, _ := st.Player("p1")
	if diff := cmp.Diff(domain.Bundle{domain.Trust: 2}, p1.Resources); diff != "" {
		t.Fatalf("resources (-want +got):\n%s", diff)
	}
	if p1.Ideologies[domain.Idealist] != 1 {
		t.Fatalf("ideologies = %v", p1.Ideologies)
	}
	turn := st.CurrentTurn()
	if turn.Phase != domain.PhaseAwaitingInfluence || turn.IdeologyCardID != railwaysCard || turn.IdeologyChoice != domain.ChoiceB {
		t.Fatalf("turn = %+v", turn)
	}
	deck, _ := st.Deck(domain.DeckIdeology)
	if domain.Offers(deck.Cards, railwaysCard) {
		t.Fatal("answered card still in the ideology pile")
	}

	if _, err := svc.ResolveIdeology(ctx, action, railwaysCard, domain.ChoiceA); !errors.Is(err, domain.ErrInvalidPhase) {
		t.Fatalf("second answer err = %v", err)
	}
}

func TestPlaceVotersCompletesTurnAndRotates(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2", "p3")
	answerOffered(t, svc, st)
	offer(t, store, freeLunch, slowNewsDay)
	before := len(store.entries(sessionID))

	st, err := svc.PlaceVoters(context.Background(), TurnAction{sessionID, "p1", 0}, freeLunch, capital)
	if err != nil {
		t.Fatalf("PlaceVoters: %v", err)
	}

	if done := st.Turns[0]; done.Phase != domain.PhaseCompleted || done.EndedAt == nil {
		t.Fatalf("turn 0 = %+v", done)
	}
	next := st.CurrentTurn()
	if next.Index != 1 || next.ActivePlayer != "p2" || next.NeighborReader != "p1" || next.Phase != domain.PhaseAwaitingIdeology {
		t.Fatalf("turn 1 = %+v", next)
	}
	if got := st.Zones[capital].Count("p1"); got != 1 {
		t.Fatalf("capital voters = %d", got)
	}
	deck, _ := st.Deck(domain.DeckVoteBank)
	if domain.Offers(deck.Cards, freeLunch) || !domain.Offers(deck.Discard, freeLunch) {
		t.Fatalf("vote bank deck = %+v", deck)
	}

	entries := store.entries(sessionID)[before:]
	want := []string{"INFLUENCE_VOTERS", "HEADLINE_TRIGGERED", "TURN_END", "TURN_START"}
	if diff := cmp.Diff(want, logTypes(entries)); diff != "" {
		t.Fatalf("log (-want +got):\n%s", diff)
	}
	if entries[1].TurnIndex != nil {
		t.Fatalf("headline entry turn = %v, want nil", *entries[1].TurnIndex)
	}
	if *entries[3].TurnIndex != 1 || entries[3].ActorID != "p2" {
		t.Fatalf("next turn start = %+v", entries[3])
	}

	ctx := context.Background()
	if _, err := svc.BuyConspiracy(ctx, TurnAction{sessionID, "p1", 0}); !errors.Is(err, domain.ErrTurnAlreadyCompleted) {
		t.Fatalf("stale turn err = %v", err)
	}
	if _, err := svc.BuyConspiracy(ctx, TurnAction{sessionID, "p1", 1}); !errors.Is(err, domain.ErrNotYourTurn) {
		t.Fatalf("other player's turn err = %v", err)
	}
	if _, err := svc.BuyConspiracy(ctx, TurnAction{sessionID, "p2", 7}); !errors.Is(err, domain.ErrTurnNotFound) {
		t.Fatalf("unknown turn err = %v", err)
	}
}

func TestPlaceVotersRollsBackOnFailure(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	answerOffered(t, svc, st)
	offer(t, store, stadiumTour, slowNewsDay)
	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Funds: 2, domain.Media: 1} })
	ctx := context.Background()
	action := TurnAction{sessionID, "p1", 0}

	if _, err := svc.PlaceVoters(ctx, action, stadiumTour, capital); !errors.Is(err, domain.ErrInsufficientResources) {
		t.Fatalf("err = %v, want ErrInsufficientResources", err)
	}
	if _, err := svc.PlaceVoters(ctx, action, stadiumTour, "atlantis"); !errors.Is(err, domain.ErrUnknownZone) {
		t.Fatalf("err = %v, want ErrUnknownZone", err)
	}
	if _, err := svc.PlaceVoters(ctx, action, freeLunch, capital); !errors.Is(err, domain.ErrCardNotOffered) {
		t.Fatalf("err = %v, want ErrCardNotOffered", err)
	}

	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Funds: 2, domain.Media: 2} })
	store.edit(t, sessionID, func(st *domain.SessionState) {
		st.ZoneControl(harborWard).VoterCounts["p2"] = 4
	})
	if _, err := svc.PlaceVoters(ctx, action, stadiumTour, harborWard); !errors.Is(err, domain.ErrZoneCapacityExceeded) {
		t.Fatalf("err = %v, want ErrZoneCapacityExceeded", err)
	}

	seqBefore := len(store.entries(sessionID))
	st, err := svc.SessionState(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := st.Player("p1")
	if diff := cmp.Diff(domain.Bundle{domain.Funds: 2, domain.Media: 2}, p1.Resources); diff != "" {
		t.Fatalf("resources changed (-want +got):\n%s", diff)
	}
	if st.Zones[harborWard].Count("p1") != 0 || st.CurrentTurn().Phase != domain.PhaseAwaitingInfluence {
		t.Fatal("failed placement left changes behind")
	}
	if int(st.Session.ActionSeq) != seqBefore {
		t.Fatalf("action seq = %d, log has %d entries", st.Session.ActionSeq, seqBefore)
	}
	deck, _ := st.Deck(domain.DeckVoteBank)
	if !domain.Offers(deck.Cards, stadiumTour) {
		t.Fatal("card left the pile on a failed placement")
	}
}

func TestPlaceVotersPassesWhenNoOfferIsPlayable(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	answerOffered(t, svc, st)
	ctx := context.Background()
	action := TurnAction{sessionID, "p1", 0}

	offer(t, store, freeLunch, slowNewsDay)
	if _, err := svc.PlaceVoters(ctx, action, "", ""); !errors.Is(err, domain.ErrCardNotOffered) {
		t.Fatalf("pass with a playable offer err = %v, want ErrCardNotOffered", err)
	}

	// Every zone full: the free card has nowhere to go.
	store.edit(t, sessionID, func(st *domain.SessionState) {
		for _, zone := range svc.Catalog().Zones {
			st.ZoneControl(zone.ID).VoterCounts["p2"] = zone.TotalVoters
		}
	})
	if _, err := svc.PlaceVoters(ctx, action, freeLunch, capital); !errors.Is(err, domain.ErrZoneCapacityExceeded) {
		t.Fatalf("err = %v, want ErrZoneCapacityExceeded", err)
	}
	full, err := svc.SessionState(ctx, sessionID)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := full.Player("p1")
	if svc.canInfluence(full, p1, full.CurrentTurn().VoteBankPreview) {
		t.Fatal("a full board still reports a playable offer")
	}
	store.edit(t, sessionID, func(st *domain.SessionState) {
		st.Zones = map[string]*domain.ZoneControl{}
	})

	offer(t, store, stadiumTour, slowNewsDay)
	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Media: 2} })
	if _, err := svc.PlaceVoters(ctx, action, stadiumTour, capital); !errors.Is(err, domain.ErrInsufficientResources) {
		t.Fatalf("err = %v, want ErrInsufficientResources", err)
	}
	before := len(store.entries(sessionID))

	st, err = svc.PlaceVoters(ctx, action, "", "")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if st.Turns[0].Phase != domain.PhaseCompleted {
		t.Fatalf("turn 0 phase = %s", st.Turns[0].Phase)
	}
	if next := st.CurrentTurn(); next.Index != 1 || next.ActivePlayer != "p2" {
		t.Fatalf("next turn = %+v", next)
	}
	p1, _ = st.Player("p1")
	if diff := cmp.Diff(domain.Bundle{domain.Media: 2}, p1.Resources); diff != "" {
		t.Fatalf("resources (-want +got):\n%s", diff)
	}
	deck, _ := st.Deck(domain.DeckVoteBank)
	if !domain.Offers(deck.Cards, stadiumTour) {
		t.Fatal("passed card left the pile")
	}
	want := []string{"INFLUENCE_PASSED", "TURN_END", "TURN_START"}
	if diff := cmp.Diff(want, logTypes(store.entries(sessionID)[before:])); diff != "" {
		t.Fatalf("log (-want +got):\n%s", diff)
	}
}

func TestPlaceVotersHeadlineDrainNeverFails(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	answerOffered(t, svc, st)
	offer(t, store, freeLunch, auditSeason)
	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Funds: 1} })

	st, err := svc.PlaceVoters(context.Background(), TurnAction{sessionID, "p1", 0}, freeLunch, capital)
	if err != nil {
		t.Fatalf("PlaceVoters: %v", err)
	}
	p1, _ := st.Player("p1")
	if p1.Resources.Total() != 0 {
		t.Fatalf("resources = %v", p1.Resources)
	}

	var headline *domain.ActionLogEntry
	for _, e := range store.entries(sessionID) {
		e := e
		if e.Type == string(ActionHeadlineTriggered) {
			headline = &e
		}
	}
	if headline == nil {
		t.Fatal("no headline logged")
	}
	result := headline.Payload["result"].(map[string]any)
	if result["type"] != "resources_removed" || result["amount"] != 1 {
		t.Fatalf("headline result = %v", result)
	}
}

func TestPlacementReachingAllMajoritiesEntersEndgameOnce(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	answerOffered(t, svc, st)
	offer(t, store, freeLunch, slowNewsDay)
	store.edit(t, sessionID, func(st *domain.SessionState) {
		for _, zone := range svc.Catalog().Zones {
			zc := st.ZoneControl(zone.ID)
			zc.VoterCounts["p1"] = zone.MajorityRequired
			zc.MajorityOwner = "p1"
			for i := 0; i < zone.VolatileSlots; i++ {
				zc.VolatileSlots = append(zc.VolatileSlots, domain.VolatileSlot{Slot: i, PlayerID: "p1"})
			}
		}
		zc := st.ZoneControl(capital)
		zc.VoterCounts["p1"] = 4
		zc.MajorityOwner = ""
	})
	ctx := context.Background()

	st, err := svc.PlaceVoters(ctx, TurnAction{sessionID, "p1", 0}, freeLunch, capital)
	if err != nil {
		t.Fatalf("PlaceVoters: %v", err)
	}
	if st.Session.Status != domain.StatusEndgame || st.Session.EndReason != domain.EndAllMajorities {
		t.Fatalf("session = %+v", st.Session)
	}
	if st.CurrentTurn().Index != 1 {
		t.Fatal("endgame should not stop the rotation")
	}

	if _, err := svc.EvaluateEnd(ctx, sessionID); err != nil {
		t.Fatalf("EvaluateEnd: %v", err)
	}
	counts := map[string]int{}
	for _, e := range store.entries(sessionID) {
		counts[e.Type]++
	}
	if counts["SESSION_END_TRIGGERED"] != 1 || counts["MAJORITY_FORMED"] != 1 {
		t.Fatalf("log counts = %v", counts)
	}
}

func TestBuyConspiracy(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()
	action := TurnAction{sessionID, "p1", 0}

	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Funds: 1} })
	if _, err := svc.BuyConspiracy(ctx, action); !errors.Is(err, domain.ErrInsufficientResources) {
		t.Fatalf("err = %v, want ErrInsufficientResources", err)
	}

	setPlayer(t, store, "p1", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Funds: 3, domain.Media: 2} })
	st, err := svc.BuyConspiracy(ctx, action)
	if err != nil {
		t.Fatalf("BuyConspiracy: %v", err)
	}
	p1, _ := st.Player("p1")
	if diff := cmp.Diff([]string{domain.MediaSmearCardID}, p1.Hand); diff != "" {
		t.Fatalf("hand (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(domain.Bundle{domain.Media: 1}, p1.Resources); diff != "" {
		t.Fatalf("resources (-want +got):\n%s", diff)
	}
	if st.CurrentTurn().Phase != domain.PhaseAwaitingIdeology {
		t.Fatal("buying must not advance the phase")
	}

	if _, err := svc.BuyConspiracy(ctx, action); !errors.Is(err, domain.ErrNoConspiracyCards) {
		t.Fatalf("err = %v, want ErrNoConspiracyCards", err)
	}
}

func TestPlayConspiracyMediaSmear(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()
	action := TurnAction{sessionID, "p1", 0}
	setPlayer(t, store, "p1", func(p *domain.Player) { p.Hand = []string{domain.MediaSmearCardID} })
	setPlayer(t, store, "p2", func(p *domain.Player) { p.Resources = domain.Bundle{domain.Media: 2} })

	tests := []struct {
		name   string
		card   string
		target string
		want   error
	}{
		{name: "not in hand", card: "nope", target: "p2", want: domain.ErrCardNotInHand},
		{name: "no target", card: domain.MediaSmearCardID, want: domain.ErrTargetRequired},
		{name: "self target", card: domain.MediaSmearCardID, target: "p1", want: domain.ErrInvalidTarget},
		{name: "unknown target", card: domain.MediaSmearCardID, target: "p9", want: domain.ErrUnknownPlayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.PlayConspiracy(ctx, action, tt.card, tt.target); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	st, err := svc.PlayConspiracy(ctx, action, domain.MediaSmearCardID, "p2")
	if err != nil {
		t.Fatalf("PlayConspiracy: %v", err)
	}
	p1, _ := st.Player("p1")
	p2, _ := st.Player("p2")
	if len(p1.Hand) != 0 {
		t.Fatalf("hand = %v", p1.Hand)
	}
	if p2.Resources[domain.Media] != 1 || !p2.HasFlag(domain.FlagSkipConspiracyPlay) {
		t.Fatalf("target = %+v", p2)
	}
}

func TestSilencedPlayConsumesFlagAndKeepsCard(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	setPlayer(t, store, "p1", func(p *domain.Player) {
		p.Hand = []string{domain.MediaSmearCardID}
		p.SetFlag(domain.FlagSkipConspiracyPlay, domain.NoTurn)
	})

	_, err := svc.PlayConspiracy(context.Background(), TurnAction{sessionID, "p1", 0}, domain.MediaSmearCardID, "p2")
	if !errors.Is(err, domain.ErrPlaySilenced) {
		t.Fatalf("err = %v, want ErrPlaySilenced", err)
	}

	st, _ := svc.SessionState(context.Background(), sessionID)
	p1, _ := st.Player("p1")
	if p1.HasFlag(domain.FlagSkipConspiracyPlay) {
		t.Fatal("silence flag not consumed")
	}
	if diff := cmp.Diff([]string{domain.MediaSmearCardID}, p1.Hand); diff != "" {
		t.Fatalf("hand (-want +got):\n%s", diff)
	}
	entries := store.entries(sessionID)
	if last := entries[len(entries)-1]; last.Type != string(ActionConspiracySilenced) {
		t.Fatalf("last entry = %s", last.Type)
	}
}

func TestGerrymander(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()
	action := TurnAction{sessionID, "p1", 0}
	store.edit(t, sessionID, func(st *domain.SessionState) {
		zc := st.ZoneControl(capital)
		zc.VoterCounts["p1"] = 6
		zc.MajorityOwner = "p1"
	})

	if _, err := svc.Gerrymander(ctx, action, capital, suburbs); !errors.Is(err, domain.ErrZonesNotAdjacent) {
		t.Fatalf("err = %v, want ErrZonesNotAdjacent", err)
	}
	if _, err := svc.Gerrymander(ctx, action, harborWard, capital); !errors.Is(err, domain.ErrNotMajorityOwner) {
		t.Fatalf("err = %v, want ErrNotMajorityOwner", err)
	}

	st, err := svc.Gerrymander(ctx, action, capital, harborWard)
	if err != nil {
		t.Fatalf("Gerrymander: %v", err)
	}
	if st.Zones[capital].Count("p1") != 5 || st.Zones[harborWard].Count("p1") != 1 || st.Zones[capital].GerrymanderUses != 1 {
		t.Fatalf("zones = %+v %+v", st.Zones[capital], st.Zones[harborWard])
	}

	if _, err := svc.Gerrymander(ctx, action, capital, harborWard); !errors.Is(err, domain.ErrMajorityLocked) {
		t.Fatalf("err = %v, want ErrMajorityLocked", err)
	}
}

func TestGerrymanderSkipConsumesFlag(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	store.edit(t, sessionID, func(st *domain.SessionState) {
		zc := st.ZoneControl(capital)
		zc.VoterCounts["p1"] = 6
		zc.MajorityOwner = "p1"
	})
	setPlayer(t, store, "p1", func(p *domain.Player) { p.SetFlag(domain.FlagSkipGerrymander, 0) })

	_, err := svc.Gerrymander(context.Background(), TurnAction{sessionID, "p1", 0}, capital, harborWard)
	if !errors.Is(err, domain.ErrGerrymanderSkipped) {
		t.Fatalf("err = %v, want ErrGerrymanderSkipped", err)
	}
	st, _ := svc.SessionState(context.Background(), sessionID)
	p1, _ := st.Player("p1")
	if p1.HasFlag(domain.FlagSkipGerrymander) {
		t.Fatal("skip flag not consumed")
	}
	if st.Zones[capital].Count("p1") != 6 {
		t.Fatal("skipped gerrymander moved a voter")
	}
}

func TestFormCoalitionTradesDominantIdeologies(t *testing.T) {
	svc, store := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()
	store.edit(t, sessionID, func(st *domain.SessionState) {
		zc := st.ZoneControl(industrial)
		zc.VoterCounts["p2"] = 4
		zc.VoterCounts["p1"] = 1
		zc.MajorityOwner = "p2"
	})
	setPlayer(t, store, "p1", func(p *domain.Player) { p.Ideologies = domain.IdeologyTally{domain.Capitalist: 2} })

	if _, err := svc.FormCoalition(ctx, sessionID, "p1", industrial, "p2"); !errors.Is(err, domain.ErrNoIdeologyToTrade) {
		t.Fatalf("err = %v, want ErrNoIdeologyToTrade", err)
	}
	if _, err := svc.FormCoalition(ctx, sessionID, "p1", industrial, "p1"); !errors.Is(err, domain.ErrInvalidPartner) {
		t.Fatalf("err = %v, want ErrInvalidPartner", err)
	}

	setPlayer(t, store, "p2", func(p *domain.Player) { p.Ideologies = domain.IdeologyTally{domain.Supremo: 1} })
	st, err := svc.FormCoalition(ctx, sessionID, "p1", industrial, "p2")
	if err != nil {
		t.Fatalf("FormCoalition: %v", err)
	}
	p1, _ := st.Player("p1")
	p2, _ := st.Player("p2")
	if p1.Ideologies[domain.Capitalist] != 1 || p2.Ideologies[domain.Supremo] != 0 {
		t.Fatalf("tallies = %v %v", p1.Ideologies, p2.Ideologies)
	}
	if c := st.Zones[industrial].Coalition; c == nil || c.Players != [2]string{"p1", "p2"} {
		t.Fatalf("coalition = %+v", c)
	}

	entries := store.entries(sessionID)
	last := entries[len(entries)-1]
	if last.Type != string(ActionCoalitionFormed) || last.TurnIndex != nil {
		t.Fatalf("last entry = %+v", last)
	}

	if _, err := svc.FormCoalition(ctx, sessionID, "p1", industrial, "p2"); !errors.Is(err, domain.ErrCoalitionExists) {
		t.Fatalf("err = %v, want ErrCoalitionExists", err)
	}
}

func TestCompleteSession(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()

	if _, err := svc.CompleteSession(ctx, sessionID, "p2", ""); !errors.Is(err, ErrNotHost) {
		t.Fatalf("err = %v, want ErrNotHost", err)
	}
	st, err := svc.CompleteSession(ctx, sessionID, "p1", strings.Repeat("é", 600))
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if st.Session.Status != domain.StatusCompleted || utf8.RuneCountInString(st.Session.Summary) != 500 {
		t.Fatalf("session = %s, summary runes %d", st.Session.Status, utf8.RuneCountInString(st.Session.Summary))
	}

	if _, err := svc.CompleteSession(ctx, sessionID, "p1", ""); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
	if _, err := svc.BuyConspiracy(ctx, TurnAction{sessionID, "p1", 0}); !errors.Is(err, domain.ErrSessionClosed) {
		t.Fatalf("err = %v, want ErrSessionClosed", err)
	}
}

func TestConcurrentResolutionsOnlyOneSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	turn := st.CurrentTurn()
	action := TurnAction{sessionID, "p1", turn.Index}

	errs := make([]error, 2)
	g, ctx := errgroup.WithContext(context.Background())
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = svc.ResolveIdeology(ctx, action, turn.IdeologyPreview[0], domain.ChoiceA)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case !errors.Is(err, domain.ErrInvalidPhase):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d resolutions succeeded, want 1", succeeded)
	}
}

func TestCommitConflictIsSurfaced(t *testing.T) {
	svc, store := newTestService(t)
	st := startSession(t, svc, "p1", "p2")
	store.conflicts = 1

	turn := st.CurrentTurn()
	_, err := svc.ResolveIdeology(context.Background(), TurnAction{sessionID, "p1", 0}, turn.IdeologyPreview[0], domain.ChoiceA)
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if _, err := svc.SessionState(context.Background(), "missing"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestActionLogPaging(t *testing.T) {
	svc, _ := newTestService(t)
	startSession(t, svc, "p1", "p2")
	ctx := context.Background()

	page, err := svc.ActionLog(ctx, sessionID, 1, 2)
	if err != nil {
		t.Fatalf("ActionLog: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 2 || page[1].Seq != 3 {
		t.Fatalf("page = %+v", page)
	}
	all, err := svc.FullActionLog(ctx, sessionID)
	if err != nil {
		t.Fatalf("FullActionLog: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("full log has %d entries", len(all))
	}
	if _, err := svc.ActionLog(ctx, sessionID, -1, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
