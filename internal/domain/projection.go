package domain

import "sort"

// PublicPlayer is the broadcast-safe view of a player.
type PublicPlayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Score       int    `json:"score"`
	IsHost      bool   `json:"isHost"`
	HasAnswered bool   `json:"hasAnswered"`
}

// PublicQuestion carries the question in play. CorrectOptionIndex is nil
// until the host reveals, so the wire payload cannot leak the answer.
type PublicQuestion struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	Order              int      `json:"order"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
}

// PublicState is the projection of GameState broadcast to every connection
// in a room. Per-player answer choices are withheld until reveal.
type PublicState struct {
	RoomCode             string          `json:"roomCode"`
	HostName             string          `json:"hostName"`
	Status               GameStatus      `json:"status"`
	Players              []PublicPlayer  `json:"players"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	TotalQuestions       int             `json:"totalQuestions"`
	CurrentQuestion      *PublicQuestion `json:"currentQuestion,omitempty"`
	ShowResults          bool            `json:"showResults"`
	Answers              map[string]int  `json:"answers,omitempty"`
}

// Public builds the broadcast projection of the state.
func (g *GameState) Public() PublicState {
	players := make([]PublicPlayer, 0, len(g.Players))
	for _, p := range g.Players {
		players = append(players, PublicPlayer{
			ID:          p.ID,
			Name:        p.Name,
			Score:       p.Score,
			IsHost:      p.IsHost,
			HasAnswered: p.HasAnswered,
		})
	}
	// Stable order: join order, then id so ties don't flap between broadcasts.
	sort.Slice(players, func(i, j int) bool {
		pi := g.Players[players[i].ID]
		pj := g.Players[players[j].ID]
		if pi != nil && pj != nil && !pi.JoinedAt.Equal(pj.JoinedAt) {
			return pi.JoinedAt.Before(pj.JoinedAt)
		}
		return players[i].ID < players[j].ID
	})

	out := PublicState{
		RoomCode:             g.RoomCode,
		HostName:             g.HostName,
		Status:               g.Status,
		Players:              players,
		CurrentQuestionIndex: g.CurrentQuestionIndex,
		TotalQuestions:       len(g.Questions),
		ShowResults:          g.ShowResults,
	}

	if q := g.CurrentQuestion(); q != nil {
		pub := PublicQuestion{
			Text:    q.Text,
			Options: append([]string(nil), q.Options...),
			Order:   q.Order,
		}
		if g.ShowResults {
			idx := q.CorrectOptionIndex
			pub.CorrectOptionIndex = &idx
		}
		out.CurrentQuestion = &pub
	}

	if g.ShowResults {
		answers := make(map[string]int, len(g.Answers))
		for id, idx := range g.Answers {
			answers[id] = idx
		}
		out.Answers = answers
	}

	return out
}
