package brackets

import (
	"context"
	"fmt"

	"github.com/courtside/tournament-engine/models"
)

type GenerateBracketParams struct {
	Tournament   *models.Tournament
	Participants []*models.Participant
}

// BracketGenerator строит сетку как чистую функцию от упорядоченного списка
// участников: без БД, без сети, детерминированно.
type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// ForType returns the generator for the given bracket type.
func ForType(t models.BracketType) (BracketGenerator, error) {
	switch t {
	case models.BracketSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.BracketDoubleElimination:
		return NewDoubleEliminationGenerator(), nil
	case models.BracketRoundRobin:
		return NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported bracket type %q", t)
	}
}

// BracketMatch — матч-заготовка, результат генерации. UID используется
// только для связывания внутри сетки до сохранения; идентификаторы в БД
// выдаёт хранилище.
type BracketMatch struct {
	UID          string
	Side         models.BracketSide
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	// Куда уходит победитель (и, для double elimination, проигравший).
	WinnerToUID  *string
	WinnerToSlot int
	LoserToUID   *string
	LoserToSlot  int

	// Completed: матч разрешён на этапе генерации (bye либо мёртвая ветка,
	// у которой не осталось живых источников). WinnerID == nil у мёртвых.
	Completed bool
	WinnerID  *int

	// Walkover: ровно один живой источник; матч завершится автоматически,
	// когда продвижение заполнит его единственный слот.
	Walkover bool
}

// slotRef описывает, откуда слот получит участника: либо участник известен
// сразу, либо он придёт из матча-источника, либо слот заведомо пуст.
type slotRef struct {
	participantID *int
	sourceUID     string
	takeLoser     bool
	dead          bool
}

func participantSlot(id int) slotRef { return slotRef{participantID: &id} }

func winnerOf(uid string) slotRef { return slotRef{sourceUID: uid} }

func loserOf(uid string) slotRef { return slotRef{sourceUID: uid, takeLoser: true} }

func emptySlot() slotRef { return slotRef{dead: true} }

type genMatch struct {
	uid   string
	side  models.BracketSide
	round int
	order int
	slots [2]slotRef

	completed bool
	winnerID  *int
	loserID   *int
	walkover  bool
}

// settle разрешает всё, что известно статически: авто-завершает bye-матчи,
// продвигает их победителей, помечает мёртвыми слоты, источник которых не
// даёт участника (bye не порождает проигравшего), и каскадно повторяет,
// пока граф не стабилизируется. Оставшиеся матчи с единственным живым
// слотом получают отметку walkover.
func settle(matches []*genMatch) {
	byUID := make(map[string]*genMatch, len(matches))
	for _, m := range matches {
		byUID[m.uid] = m
	}

	for changed := true; changed; {
		changed = false
		for _, m := range matches {
			if m.completed {
				continue
			}
			for i := range m.slots {
				s := &m.slots[i]
				if s.participantID != nil || s.dead || s.sourceUID == "" {
					continue
				}
				src := byUID[s.sourceUID]
				if src == nil || !src.completed {
					continue
				}
				fed := src.winnerID
				if s.takeLoser {
					fed = src.loserID
				}
				if fed != nil {
					s.participantID = fed
				} else {
					s.dead = true
				}
				changed = true
			}

			filled, pending := m.slotState(byUID)
			switch {
			case filled == 1 && pending == 0:
				m.completed = true
				if m.slots[0].participantID != nil {
					m.winnerID = m.slots[0].participantID
				} else {
					m.winnerID = m.slots[1].participantID
				}
				changed = true
			case filled == 0 && pending == 0:
				// Мёртвая ветка: оба источника оказались bye.
				m.completed = true
				changed = true
			}
		}
	}

	for _, m := range matches {
		if m.completed {
			continue
		}
		filled, pending := m.slotState(byUID)
		if filled+pending == 1 {
			m.walkover = true
		}
	}
}

func (m *genMatch) slotState(byUID map[string]*genMatch) (filled, pending int) {
	for i := range m.slots {
		s := &m.slots[i]
		switch {
		case s.participantID != nil:
			filled++
		case s.dead:
		case s.sourceUID != "":
			pending++
		}
	}
	return filled, pending
}

// emit переводит внутренние узлы в BracketMatch, выводя прямые ссылки
// (куда уходят победитель и проигравший) из обратных ссылок слотов.
func emit(matches []*genMatch) []*BracketMatch {
	out := make([]*BracketMatch, 0, len(matches))
	index := make(map[string]*BracketMatch, len(matches))

	for _, m := range matches {
		bm := &BracketMatch{
			UID:            m.uid,
			Side:           m.side,
			Round:          m.round,
			OrderInRound:   m.order,
			Participant1ID: m.slots[0].participantID,
			Participant2ID: m.slots[1].participantID,
			Completed:      m.completed,
			WinnerID:       m.winnerID,
			Walkover:       m.walkover,
		}
		out = append(out, bm)
		index[m.uid] = bm
	}

	for _, m := range matches {
		for i := range m.slots {
			s := m.slots[i]
			if s.sourceUID == "" {
				continue
			}
			src, ok := index[s.sourceUID]
			if !ok {
				continue
			}
			uid := m.uid
			if s.takeLoser {
				src.LoserToUID = &uid
				src.LoserToSlot = i + 1
			} else {
				src.WinnerToUID = &uid
				src.WinnerToSlot = i + 1
			}
		}
	}

	return out
}

// ceilLog2 возвращает количество раундов для n участников.
func ceilLog2(n int) int {
	rounds := 0
	for c := 1; c < n; c <<= 1 {
		rounds++
	}
	return rounds
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
