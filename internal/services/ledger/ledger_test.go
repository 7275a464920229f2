package ledger

import (
	"testing"

	"github.com/mcoot/wordbomb/internal/model"
	"github.com/stretchr/testify/suite"
)

type LedgerSuite struct {
	suite.Suite
	ledger *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ledger = New([]string{"Lato", "Biny", "Zima"}, 2)
}

func (s *LedgerSuite) TestNextWrapsAround() {
	next, err := s.ledger.Next(0)
	s.Require().NoError(err)
	s.Equal(1, next)

	next, err = s.ledger.Next(2)
	s.Require().NoError(err)
	s.Equal(0, next)

	next, err = s.ledger.Next(-1)
	s.Require().NoError(err)
	s.Equal(0, next)
}

func (s *LedgerSuite) TestNextSkipsEliminated() {
	s.ledger.Eliminate(1)

	next, err := s.ledger.Next(0)
	s.Require().NoError(err)
	s.Equal(2, next)

	next, err = s.ledger.Next(2)
	s.Require().NoError(err)
	s.Equal(0, next)
}

func (s *LedgerSuite) TestNextFailsWithOneTeamLeft() {
	s.ledger.Eliminate(0)
	s.ledger.Eliminate(2)

	_, err := s.ledger.Next(1)
	s.ErrorIs(err, model.ErrNoEligibleTeam)

	s.ledger.Eliminate(1)
	_, err = s.ledger.Next(1)
	s.ErrorIs(err, model.ErrNoEligibleTeam)
}

func (s *LedgerSuite) TestEliminationNeverReorders() {
	s.ledger.LoseLife(1)
	s.ledger.LoseLife(1)

	s.Equal("Lato", s.ledger.Team(0).Name)
	s.Equal("Biny", s.ledger.Team(1).Name)
	s.Equal("Zima", s.ledger.Team(2).Name)
}

func (s *LedgerSuite) TestLoseLifeClampsAndEliminates() {
	remaining, eliminated := s.ledger.LoseLife(0)
	s.Equal(1, remaining)
	s.False(eliminated)

	remaining, eliminated = s.ledger.LoseLife(0)
	s.Equal(0, remaining)
	s.True(eliminated)

	remaining, eliminated = s.ledger.LoseLife(0)
	s.Equal(0, remaining)
	s.True(eliminated)
	s.Equal(2, s.ledger.Alive())
}

func (s *LedgerSuite) TestWinner() {
	_, ok := s.ledger.Winner()
	s.False(ok)

	s.ledger.Eliminate(0)
	s.ledger.Eliminate(1)

	winner, ok := s.ledger.Winner()
	s.True(ok)
	s.Equal(2, winner)
}

func (s *LedgerSuite) TestReset() {
	s.ledger.LoseLife(0)
	s.ledger.LoseLife(0)
	_, _ = s.ledger.AddMember("Lato", "p1")

	s.ledger.Reset(3)

	s.Equal(3, s.ledger.Alive())
	s.Equal(3, s.ledger.Team(0).Lives)
	s.Equal([]model.PlayerID{"p1"}, s.ledger.Team(0).Members)
}

func (s *LedgerSuite) TestMembersKeepJoinOrder() {
	for _, id := range []model.PlayerID{"p1", "p2", "p3"} {
		_, err := s.ledger.AddMember("biny", id)
		s.Require().NoError(err)
	}

	i, ok := s.ledger.RemoveMember("p2")
	s.True(ok)
	s.Equal(1, i)

	_, err := s.ledger.AddMember("Biny", "p2")
	s.Require().NoError(err)
	s.Equal([]model.PlayerID{"p1", "p3", "p2"}, s.ledger.Team(1).Members)
	s.Equal(1, s.ledger.NonEmpty())
}

func (s *LedgerSuite) TestAddMemberUnknownTeam() {
	_, err := s.ledger.AddMember("Nope", "p1")
	s.ErrorIs(err, model.ErrUnknownTeam)
}

func (s *LedgerSuite) TestSnapshot() {
	_, _ = s.ledger.AddMember("Lato", "p1")
	s.ledger.LoseLife(1)
	s.ledger.LoseLife(1)

	views := s.ledger.Snapshot(func(id model.PlayerID) string { return "name-" + string(id) })

	s.Require().Len(views, 3)
	s.Equal(model.TeamView{Name: "Lato", Members: []string{"name-p1"}, Lives: 2, Alive: true}, views[0])
	s.Equal(model.TeamView{Name: "Biny", Members: []string{}, Lives: 0, Alive: false}, views[1])
}
