package session

import (
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/md-rashed-zaman/ariaconcierge/services/concierge-service/internal/model"
)

// MaxOrdinals caps how many listed appointments a session can refer to by number.
const MaxOrdinals = 5

var ErrOrdinalNotFound = errors.New("ordinal not in the latest listing")

// Index maps the numbers read out in the latest listing to appointment ids.
type Index struct {
	mu  sync.RWMutex
	ids map[int]string
}

func NewIndex() *Index {
	return &Index{ids: make(map[int]string)}
}

// Rebuild replaces the whole map: ordinal i refers to appts[i-1].
func (x *Index) Rebuild(appts []model.Appointment) {
	ids := make(map[int]string, len(appts))
	for i, a := range appts {
		if i == MaxOrdinals {
			break
		}
		ids[i+1] = a.ID
	}
	x.mu.Lock()
	x.ids = ids
	x.mu.Unlock()
}

func (x *Index) Resolve(ordinal int) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	id, ok := x.ids[ordinal]
	if !ok {
		return "", ErrOrdinalNotFound
	}
	return id, nil
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

func (x *Index) Clear() {
	x.mu.Lock()
	x.ids = make(map[int]string)
	x.mu.Unlock()
}

var ordinalWords = map[string]int{
	"one": 1, "first": 1,
	"two": 2, "second": 2,
	"three": 3, "third": 3,
	"four": 4, "fourth": 4,
	"five": 5, "fifth": 5,
}

// ordinalFillers are leading words a caller may say before the number.
var ordinalFillers = map[string]bool{"option": true, "number": true, "no": true, "num": true, "the": true, "appointment": true}

// ParseOrdinal accepts forms such as "2", "#2", "no. 2", "no 2", "2nd", "1st.", "two" or
// "Second". It returns 0, false otherwise.
func ParseOrdinal(raw string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("#", " ", ".", " ", ",", " ", "!", " ", "?", " ").Replace(s)
	fields := strings.Fields(s)
	for len(fields) > 1 && ordinalFillers[fields[0]] {
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return 0, false
	}
	s = fields[0]
	if n, ok := ordinalWords[s]; ok {
		return n, true
	}
	s = trimOrdinalSuffix(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// trimOrdinalSuffix turns "1st", "2nd", "3rd" or "4th" into the bare digits.
func trimOrdinalSuffix(s string) string {
	for _, suf := range []string{"st", "nd", "rd", "th"} {
		if digits, ok := strings.CutSuffix(s, suf); ok && digits != "" {
			return digits
		}
	}
	return s
}
