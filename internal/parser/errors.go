package parser

import (
	"fmt"
	"strings"
)

const msgEmpty = "Пустая строка"

// diagnostics describes the furthest point the scanner reached.
func (s *scanner) diagnostics() []string {
	expected := strings.Join(s.expected, ", ")

	lead := 0
	for lead < len(s.low) && (isInlineSpace(s.low[lead]) || isLineBreak(s.low[lead])) {
		lead++
	}

	switch {
	case s.failPos >= len(s.src):
		return []string{"Строка закончилась, ожидалось: " + expected}
	case s.failPos <= lead:
		return []string{"Не удалось распознать расписание, ожидалось одно из: " + expected}
	default:
		return []string{
			fmt.Sprintf("Распознано: «%s»", s.head(s.failPos)),
			"Ожидалось: " + expected,
			fmt.Sprintf("Не распознано: «%s»", s.tail(s.failPos)),
		}
	}
}

func invalidDate(iso string) string {
	return fmt.Sprintf("Дата \"%s\" не может существовать", iso)
}

func reversedRange(from, to string) string {
	return fmt.Sprintf("Дата начала \"%s\" позже даты окончания \"%s\"", from, to)
}
