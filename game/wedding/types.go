package wedding

import (
	"encoding/json"
	"fmt"
)

// Espoused is the answer to every question: the bride or the groom.
type Espoused int

const (
	Bride Espoused = iota + 1
	Groom
)

func (e Espoused) String() string {
	switch e {
	case Bride:
		return "Bride"
	case Groom:
		return "Groom"
	default:
		return fmt.Sprintf("Espoused(%d)", int(e))
	}
}

func (e Espoused) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *Espoused) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Bride":
		*e = Bride
	case "Groom":
		*e = Groom
	default:
		return fmt.Errorf("unknown espoused %q", s)
	}
	return nil
}

// QuestionState is the lifecycle of a question, driven by the hosts.
type QuestionState int

const (
	NotAsked QuestionState = iota
	Open
	Closed
	Revealed
)

var questionStates = [...]string{"NotAsked", "Open", "Closed", "Revealed"}

func (s QuestionState) String() string {
	if s < NotAsked || s > Revealed {
		return fmt.Sprintf("QuestionState(%d)", int(s))
	}
	return questionStates[s]
}

// CanGuess reports whether guests may still change their guess.
func (s QuestionState) CanGuess() bool {
	return s == Open
}

func (s QuestionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *QuestionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for i, n := range questionStates {
		if n == name {
			*s = QuestionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown question state %q", name)
}

// GuestView is what a registered guest sees: only their own guess.
type GuestView struct {
	Name     string        `json:"name"`
	Question string        `json:"question"`
	Guess    *Espoused     `json:"guess"`
	State    QuestionState `json:"state"`
}

// HostQuestion carries the aggregated guesses for one question.
type HostQuestion struct {
	Text  string        `json:"text"`
	State QuestionState `json:"state"`
	Bride int           `json:"bride"`
	Groom int           `json:"groom"`
}

// HostView is the full quiz including tallies.
type HostView struct {
	Questions       []HostQuestion `json:"questions"`
	CurrentQuestion *int           `json:"current_question"`
}

// View is encoded as {"SignUp":null}, {"Guest":{...}} or {"Host":{...}}.
type View struct {
	Guest *GuestView
	Host  *HostView
}

func (v View) MarshalJSON() ([]byte, error) {
	switch {
	case v.Host != nil:
		return json.Marshal(map[string]*HostView{"Host": v.Host})
	case v.Guest != nil:
		return json.Marshal(map[string]*GuestView{"Guest": v.Guest})
	default:
		return []byte(`{"SignUp":null}`), nil
	}
}
