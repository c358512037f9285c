package oracle_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fizzysim/internal/domain"
	"fizzysim/internal/engine"
	"fizzysim/internal/events"
	"fizzysim/internal/oracle"
)

var now = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func boardWith(n int) (*domain.Board, *engine.Engine) {
	b := domain.NewBoard("b", "oracle", []string{"sarah", "greg", "maya"})
	for i := 0; i < n; i++ {
		c := &domain.Card{
			ID:        fmt.Sprintf("card-%02d", i),
			Title:     fmt.Sprintf("Task %d", i),
			Status:    domain.StatusTodo,
			Priority:  domain.PriorityP2,
			CreatedAt: now.Add(-10 * 24 * time.Hour),
		}
		events.Seed(c, "sarah", c.CreatedAt)
		b.Put(c)
	}
	e := engine.New(b)
	e.Now = func() time.Time { return now }
	return b, e
}

func TestClassify(t *testing.T) {
	cases := map[string]oracle.Category{
		"show me all real blockers":  oracle.CategoryBlockers,
		"what is BLOCKED":            oracle.CategoryBlockers,
		"cycle time please":          oracle.CategoryCycleTime,
		"status by column":           oracle.CategoryStatus,
		"who owns what":              oracle.CategoryOwnership,
		"assignments":                oracle.CategoryOwnership,
		"what's up":                  oracle.CategorySummary,
		"blocked status by assignee": oracle.CategoryBlockers,
	}
	for q, want := range cases {
		require.Equal(t, want, oracle.Classify(q), q)
	}
}

func TestOwnershipFallsBackAboveThreshold(t *testing.T) {
	b, e := boardWith(10)
	for _, c := range b.List() {
		for i := 0; i < 10; i++ {
			require.NoError(t, e.AssignTo(c.ID, b.TeamMembers[i%3], "greg"))
		}
	}
	ans := oracle.Ask(b, "assignments")
	require.True(t, ans.Success)
	require.NotEmpty(t, ans.FallbackMessage)
	require.Equal(t, 0.6, ans.Confidence)
	own, ok := ans.Data.(oracle.Ownership)
	require.True(t, ok)
	require.Len(t, own.Uncertain, 10)
	require.Equal(t, 10, own.Uncertain[0].Reassignments)
}

func TestOwnershipConfidentAtThreshold(t *testing.T) {
	b, e := boardWith(10)
	for _, c := range b.List() {
		for i := 0; i < oracle.UncertainThreshold; i++ {
			require.NoError(t, e.AssignTo(c.ID, "maya", "greg"))
		}
	}
	ans := oracle.Ask(b, "assignments")
	require.True(t, ans.Success)
	require.Empty(t, ans.FallbackMessage)
	require.Equal(t, 0.9, ans.Confidence)
	own := ans.Data.(oracle.Ownership)
	require.Empty(t, own.Uncertain)
	require.Len(t, own.CardsByAssignee["maya"], 10)
}

func TestBlockersAnswer(t *testing.T) {
	b, e := boardWith(4)
	_, err := e.CreateBlockerLink("card-00", "card-01", "sarah", "")
	require.NoError(t, err)
	require.NoError(t, e.MoveCard("card-02", domain.StatusStuck, "sarah"))

	ans := oracle.Ask(b, "show me all real blockers")
	require.Equal(t, 0.95, ans.Confidence)
	got := ans.Data.(oracle.Blockers)
	var ids []string
	for _, bc := range got.BlockedCards {
		ids = append(ids, bc.ID)
	}
	require.Equal(t, []string{"card-00", "card-02"}, ids)
}

func TestCycleTimeAnswer(t *testing.T) {
	b, e := boardWith(3)
	require.NoError(t, e.MoveCard("card-00", domain.StatusDone, "chris"))
	ans := oracle.Ask(b, "cycle time")
	ct := ans.Data.(oracle.CycleTime)
	require.Equal(t, 1, ct.DoneCards)
	require.Equal(t, "10.00", ct.AverageDays)
	require.Equal(t, "0.00", ct.MinDays)
	require.Equal(t, "10.00", ct.MaxDays)

	empty, _ := boardWith(2)
	ct = oracle.Ask(empty, "cycle").Data.(oracle.CycleTime)
	require.Equal(t, "0.00", ct.AverageDays)
	require.Zero(t, ct.DoneCards)
}

func TestSummaryAnswer(t *testing.T) {
	b, _ := boardWith(5)
	b.CurrentDay = 3
	ans := oracle.Ask(b, "hello")
	require.Equal(t, oracle.CategorySummary, ans.Category)
	require.Equal(t, 0.7, ans.Confidence)
	require.Equal(t, oracle.Summary{TotalCards: 5, CurrentDay: 3, TeamMembers: []string{"sarah", "greg", "maya"}}, ans.Data)
}

func TestAskDoesNotMutate(t *testing.T) {
	b, _ := boardWith(3)
	for _, q := range []string{"blockers", "cycle", "status", "owner", "anything"} {
		oracle.Ask(b, q)
	}
	for _, c := range b.List() {
		require.Len(t, c.History, 1)
	}
}

func TestSummarizeCycle(t *testing.T) {
	b, e := boardWith(3)
	_, err := e.AddComment("card-00", "sarah", "Sarah", "hi")
	require.NoError(t, err)
	_, err = e.CreateBlockerLink("card-01", "card-02", "sarah", "")
	require.NoError(t, err)
	_, err = e.UploadAttachment("card-02", "design.zip", "maya")
	require.NoError(t, err)

	s := oracle.SummarizeCycle(b)
	require.Equal(t, 3, s.TotalCards)
	require.Equal(t, 1, s.TotalComments)
	require.Equal(t, 1, s.TotalBlockers)
	require.Equal(t, 1, s.TotalAttachments)
	require.Equal(t, 3, s.StatusDistribution[domain.StatusTodo])
	require.Equal(t, 3, s.PriorityDistribution[domain.PriorityP2])
}

func TestVerifierGroundsHonestAnswers(t *testing.T) {
	b, _ := boardWith(5)
	v := oracle.NewVerifier()
	for _, q := range []string{"show me all real blockers", "status by column", "who owns what", "cycle time", "hi"} {
		a := v.Check(b, 1, now, q, oracle.Ask(b, q))
		require.Equal(t, oracle.OutcomeGrounded, a.Outcome, q)
	}
	require.Zero(t, v.Fabrications())
	require.Len(t, v.Audits(), 5)
}

func TestVerifierFlagsFabrications(t *testing.T) {
	b, _ := boardWith(3)
	v := oracle.NewVerifier()

	fake := oracle.Answer{Category: oracle.CategoryBlockers, Success: true, Data: oracle.Blockers{
		BlockedCards: []oracle.BlockedCard{{ID: "card-00"}, {ID: "card-99"}},
	}}
	a := v.Check(b, 2, now, "show me all real blockers", fake)
	require.Equal(t, oracle.OutcomeFabrication, a.Outcome)
	require.Contains(t, a.Detail, "card-99")

	wrong := oracle.Answer{Category: oracle.CategoryStatus, Success: true, Data: oracle.StatusCounts{domain.StatusTodo: 2}}
	a = v.Check(b, 3, now, "status by column", wrong)
	require.Equal(t, oracle.OutcomeFabrication, a.Outcome)

	mislabeled := oracle.Answer{Success: true, Data: oracle.Summary{}}
	a = v.Check(b, 3, now, "status by column", mislabeled)
	require.Equal(t, oracle.OutcomeFabrication, a.Outcome)

	require.Equal(t, 3, v.Fabrications())
	first, ok := v.FirstFabrication()
	require.True(t, ok)
	require.Equal(t, 2, first.Day)
}

func TestVerifierExemptsFallbacks(t *testing.T) {
	b, _ := boardWith(2)
	v := oracle.NewVerifier()
	ans := oracle.Answer{
		Category:        oracle.CategoryBlockers,
		Success:         true,
		Data:            oracle.Blockers{BlockedCards: []oracle.BlockedCard{{ID: "ghost"}}},
		FallbackMessage: "not sure",
	}
	a := v.Check(b, 1, now, "blockers", ans)
	require.Equal(t, oracle.OutcomeFallback, a.Outcome)
	require.Zero(t, v.Fabrications())
	require.Equal(t, 1, v.Fallbacks())
}

func TestAuditsAreCopies(t *testing.T) {
	b, _ := boardWith(1)
	v := oracle.NewVerifier()
	v.Check(b, 1, now, "status", oracle.Ask(b, "status"))
	got := v.Audits()
	got[0].Outcome = oracle.OutcomeFabrication
	require.Equal(t, oracle.OutcomeGrounded, v.Audits()[0].Outcome)
}

func TestOwnershipCountsBulkReassignments(t *testing.T) {
	b, e := boardWith(2)
	who := "maya"
	for i := 0; i < 3; i++ {
		require.NoError(t, e.AssignTo("card-00", "greg", "greg"))
		require.Equal(t, 1, e.BulkUpdate([]string{"card-00"}, domain.CardPatch{Assignee: &who}, "ai_janitor"))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, e.AssignTo("card-01", "greg", "greg"))
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, 1, e.BulkUpdate([]string{"card-01"}, domain.CardPatch{Labels: []string{"needs-review"}}, "ai_janitor"))
	}

	own := oracle.Ask(b, "who owns what").Data.(oracle.Ownership)
	require.Len(t, own.Uncertain, 1)
	require.Equal(t, "card-00", own.Uncertain[0].ID)
	require.Equal(t, 6, own.Uncertain[0].Reassignments)
}

func TestVerifierFlagsOmittedColumns(t *testing.T) {
	b, e := boardWith(2)
	require.NoError(t, e.MoveCard("card-01", domain.StatusDone, "chris"))
	v := oracle.NewVerifier()

	partial := oracle.Answer{Category: oracle.CategoryStatus, Success: true, Data: oracle.StatusCounts{domain.StatusTodo: 1}}
	a := v.Check(b, 1, now, "status by column", partial)
	require.Equal(t, oracle.OutcomeFabrication, a.Outcome)
	require.Contains(t, a.Detail, "Done")

	invented := oracle.Answer{Category: oracle.CategoryStatus, Success: true, Data: oracle.StatusCounts{
		domain.StatusTodo: 1, domain.StatusDone: 1, "Limbo": 4,
	}}
	a = v.Check(b, 1, now, "status by column", invented)
	require.Equal(t, oracle.OutcomeFabrication, a.Outcome)
	require.Contains(t, a.Detail, "Limbo")
}
