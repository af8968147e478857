package reconciler

import (
	"fmt"
	"math"

	"github.com/Freeeeeet/lesson_scheduler/internal/model"
	"github.com/google/uuid"
)

// ReportMode какие уроки попадают в отчёт
type ReportMode int

const (
	// ModeAll все уроки
	ModeAll ReportMode = iota
	// ModeEnrolledOnly уроки, на которые записан сам пользователь
	ModeEnrolledOnly
	// ModeGuardianScoped уроки учеников, привязанных к опекуну
	ModeGuardianScoped
)

func (m ReportMode) String() string {
	switch m {
	case ModeAll:
		return "ALL"
	case ModeEnrolledOnly:
		return "ENROLLED_ONLY"
	case ModeGuardianScoped:
		return "GUARDIAN_SCOPED"
	}
	return fmt.Sprintf("ReportMode(%d)", int(m))
}

// ModeForRole определяет режим отчёта по роли один раз, на входе в сценарий
func ModeForRole(role model.Role) (ReportMode, error) {
	switch role {
	case model.RoleAdmin:
		return ModeAll, nil
	case model.RoleTeacher, model.RoleStudent:
		return ModeEnrolledOnly, nil
	case model.RoleGuardian:
		return ModeGuardianScoped, nil
	}
	return ModeEnrolledOnly, fmt.Errorf("unknown role %q", role)
}

// Scope режим отчёта и пользователь, для которого он строится
type Scope struct {
	Mode   ReportMode
	Viewer uuid.UUID
}

// ScopeFor строит Scope для пользователя
func ScopeFor(user *model.User) (Scope, error) {
	mode, err := ModeForRole(user.Role)
	if err != nil {
		return Scope{}, err
	}
	return Scope{Mode: mode, Viewer: user.ID}, nil
}

// AttendanceSummary итог посещаемости по занятиям с отметками
type AttendanceSummary struct {
	Recorded int
	Present  int
	Rate     int // процент, округлённый до целого
}

// SummarizeAttendance считает посещаемость только по строкам с отметкой.
// Занятия без отметки не считаются пропуском.
func SummarizeAttendance(rows []Row[*model.AttendanceRecord]) AttendanceSummary {
	var s AttendanceSummary
	for _, row := range rows {
		if !row.Found || row.Record == nil {
			continue
		}
		s.Recorded++
		if row.Record.Present {
			s.Present++
		}
	}
	s.Rate = Rate(s.Present, s.Recorded)
	return s
}

// Rate процент present от total; 0, если total == 0
func Rate(present, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}
