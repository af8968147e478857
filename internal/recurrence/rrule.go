package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_scheduler/internal/apperrors"
	"github.com/teambition/rrule-go"
)

var toLibFrequency = map[Frequency]rrule.Frequency{
	FrequencyDaily:   rrule.DAILY,
	FrequencyWeekly:  rrule.WEEKLY,
	FrequencyMonthly: rrule.MONTHLY,
	FrequencyYearly:  rrule.YEARLY,
}

// Parse собирает Spec урока из RRULE-строки, хранящейся в колонке lessons.rrule.
// Пустая строка означает однократный урок. Строка может начинаться со строки DTSTART
// и префикса "RRULE:"; начало урока всегда берётся из anchorStart.
func Parse(text string, anchorStart, anchorEnd time.Time) (Spec, error) {
	const op = "parse rrule"

	spec := Spec{
		AnchorStart: anchorStart,
		AnchorEnd:   anchorEnd,
		Frequency:   FrequencyNone,
	}

	body, err := ruleBody(text)
	if err != nil {
		return Spec{}, apperrors.InvalidRecurrence(op, err)
	}
	if body == "" {
		return spec, spec.Validate()
	}
	if !strings.Contains(body, "FREQ=") {
		return Spec{}, apperrors.InvalidRecurrence(op, fmt.Errorf("FREQ is required in %q", body))
	}

	opt, err := rrule.StrToROptionInLocation(body, time.UTC)
	if err != nil {
		return Spec{}, apperrors.InvalidRecurrence(op, err)
	}
	if err := checkSupported(opt); err != nil {
		return Spec{}, apperrors.InvalidRecurrence(op, err)
	}

	for f, lib := range toLibFrequency {
		if lib == opt.Freq {
			spec.Frequency = f
		}
	}
	if spec.Frequency == FrequencyNone {
		return Spec{}, apperrors.InvalidRecurrence(op, fmt.Errorf("unsupported FREQ %v", opt.Freq))
	}

	spec.Interval = 1
	if opt.Interval > 0 {
		spec.Interval = opt.Interval
	}
	if !opt.Until.IsZero() {
		until := opt.Until
		spec.Until = &until
	}

	return spec, spec.Validate()
}

// RRule сериализует правило в строку для lessons.rrule.
// Для FrequencyNone возвращается пустая строка (в БД хранится NULL).
func (s Spec) RRule() (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	if s.Frequency == FrequencyNone {
		return "", nil
	}

	opt := rrule.ROption{
		Freq:     toLibFrequency[s.Frequency],
		Interval: s.Step(),
	}
	if s.Until != nil {
		opt.Until = s.Until.UTC().Truncate(time.Second)
	}

	return opt.String(), nil
}

// ruleBody отбрасывает строку DTSTART и префикс RRULE:
func ruleBody(text string) (string, error) {
	var body string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(upper, "DTSTART"):
			continue
		case body != "":
			return "", fmt.Errorf("only one RRULE line is supported")
		case strings.HasPrefix(upper, "RRULE:"):
			body = line[len("RRULE:"):]
		default:
			body = line
		}
	}
	return strings.ToUpper(strings.TrimSpace(body)), nil
}

func checkSupported(opt *rrule.ROption) error {
	switch {
	case opt.Count != 0:
		return fmt.Errorf("COUNT is not supported")
	case len(opt.Bysetpos) > 0, len(opt.Bymonth) > 0, len(opt.Bymonthday) > 0,
		len(opt.Byyearday) > 0, len(opt.Byweekno) > 0, len(opt.Byweekday) > 0,
		len(opt.Byhour) > 0, len(opt.Byminute) > 0, len(opt.Bysecond) > 0,
		len(opt.Byeaster) > 0:
		return fmt.Errorf("BY* rule parts are not supported")
	}
	return nil
}
