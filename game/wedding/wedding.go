// Package wedding is a guessing game for wedding guests: for each question,
// guests guess whether the answer is the bride or the groom while the hosts
// drive the questions from a projector.
package wedding

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/livestate/live"
)

const (
	Kind    = "wedding"
	Pattern = "/wedding"

	// HostName is the name that turns a participant into a host.
	HostName = "host"

	waitingText = "Next question coming up!"
)

// DefaultQuestions is used when no questions are configured.
var DefaultQuestions = []string{
	"Who can jump higher?",
	"Who can pitch a tent faster?",
	"Who sings louder?",
}

type eventKind int

const (
	setName eventKind = iota + 1
	setGuess
	setQuestion
	setQuestionState
)

// Event is one of {"SetName": s}, {"SetGuess": "Bride"|"Groom"},
// {"SetQuestion": i|null} or {"SetQuestionState": [i, state]}.
type Event struct {
	kind     eventKind
	name     string
	guess    Espoused
	question *int
	state    QuestionState
}

func SetNameEvent(name string) Event     { return Event{kind: setName, name: name} }
func SetGuessEvent(guess Espoused) Event { return Event{kind: setGuess, guess: guess} }

func SetQuestionEvent(i *int) Event {
	return Event{kind: setQuestion, question: i}
}

func SetQuestionStateEvent(i int, state QuestionState) Event {
	return Event{kind: setQuestionState, question: &i, state: state}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	tag, payload, err := live.DecodeTagged(data)
	if err != nil {
		return err
	}
	switch tag {
	case "SetName":
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return fmt.Errorf("SetName: %w", err)
		}
		*e = SetNameEvent(name)
	case "SetGuess":
		var guess Espoused
		if err := json.Unmarshal(payload, &guess); err != nil {
			return fmt.Errorf("SetGuess: %w", err)
		}
		*e = SetGuessEvent(guess)
	case "SetQuestion":
		var i *int
		if err := json.Unmarshal(payload, &i); err != nil {
			return fmt.Errorf("SetQuestion: %w", err)
		}
		*e = SetQuestionEvent(i)
	case "SetQuestionState":
		var pair []json.RawMessage
		if err := json.Unmarshal(payload, &pair); err != nil {
			return fmt.Errorf("SetQuestionState: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("SetQuestionState: want [index, state], got %d values", len(pair))
		}
		var (
			i     int
			state QuestionState
		)
		if err := json.Unmarshal(pair[0], &i); err != nil {
			return fmt.Errorf("SetQuestionState index: %w", err)
		}
		if err := json.Unmarshal(pair[1], &state); err != nil {
			return fmt.Errorf("SetQuestionState state: %w", err)
		}
		*e = SetQuestionStateEvent(i, state)
	default:
		return live.UnknownEvent(tag)
	}
	return nil
}

type question struct {
	text  string
	state QuestionState
}

type guessKey struct {
	user     live.UserID
	question int
}

// Quiz is the wedding game state.
type Quiz struct {
	guests    map[live.UserID]string
	hosts     map[live.UserID]struct{}
	questions []question
	current   *int
	guesses   map[guessKey]Espoused
}

// New creates a quiz over the given questions, falling back to DefaultQuestions.
func New(questions []string) *Quiz {
	if len(questions) == 0 {
		questions = DefaultQuestions
	}
	q := &Quiz{
		guests:    make(map[live.UserID]string),
		hosts:     make(map[live.UserID]struct{}),
		questions: make([]question, len(questions)),
		guesses:   make(map[guessKey]Espoused),
	}
	for i, text := range questions {
		q.questions[i] = question{text: text}
	}
	return q
}

// NewState returns a fresh quiz ready to be hosted.
func NewState(questions []string) live.State {
	return live.Wrap[Event, View](New(questions))
}

func (q *Quiz) RouteName() string { return Kind }

func (q *Quiz) isHost(user live.UserID) bool {
	_, ok := q.hosts[user]
	return ok
}

func (q *Quiz) View(user live.UserID) View {
	if q.isHost(user) {
		return View{Host: q.hostView()}
	}

	name, ok := q.guests[user]
	if !ok {
		return View{}
	}

	guest := &GuestView{Name: name, Question: waitingText, State: NotAsked}
	if q.current != nil {
		cur := q.questions[*q.current]
		guest.Question = cur.text
		guest.State = cur.state
		if g, ok := q.guesses[guessKey{user: user, question: *q.current}]; ok {
			guest.Guess = &g
		}
	}
	return View{Guest: guest}
}

func (q *Quiz) hostView() *HostView {
	view := &HostView{Questions: make([]HostQuestion, len(q.questions))}
	for i, question := range q.questions {
		view.Questions[i] = HostQuestion{Text: question.text, State: question.state}
	}
	for key, guess := range q.guesses {
		switch guess {
		case Bride:
			view.Questions[key.question].Bride++
		case Groom:
			view.Questions[key.question].Groom++
		}
	}
	if q.current != nil {
		cur := *q.current
		view.CurrentQuestion = &cur
	}
	return view
}

func (q *Quiz) Apply(event Event, sender live.UserID) live.Effect {
	switch event.kind {
	case setName:
		q.setName(sender, strings.TrimSpace(event.name))

	case setGuess:
		if _, ok := q.guests[sender]; !ok || q.current == nil {
			break
		}
		if !q.questions[*q.current].state.CanGuess() {
			break
		}
		q.guesses[guessKey{user: sender, question: *q.current}] = event.guess

	case setQuestion:
		if !q.isHost(sender) {
			break
		}
		if event.question == nil {
			q.current = nil
		} else if i := *event.question; i >= 0 && i < len(q.questions) {
			q.current = &i
		}

	case setQuestionState:
		if !q.isHost(sender) {
			break
		}
		if i := *event.question; i >= 0 && i < len(q.questions) {
			q.questions[i].state = event.state
		}
	}
	return live.None()
}

// setName doubles as registration: the reserved HostName makes the sender a
// host, any other name makes them a guest.
func (q *Quiz) setName(user live.UserID, name string) {
	if name == "" {
		return
	}
	if name == HostName {
		q.hosts[user] = struct{}{}
		return
	}
	delete(q.hosts, user)
	q.guests[user] = name
}

// Join is a no-op: participants are tracked once they pick a name.
func (q *Quiz) Join(live.UserID) live.Effect { return live.None() }

func (q *Quiz) TickInterval() time.Duration { return 0 }

func (q *Quiz) Tick() live.Effect { return live.None() }
