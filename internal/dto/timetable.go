package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexInt decodes a JSON number or a numeric string. Empty strings and null decode to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || v != float64(int(v)) {
			return fmt.Errorf("%q is not a whole number", raw)
		}
		n = int(v)
	}
	*f = FlexInt(n)
	return nil
}

// Int returns the plain value.
func (f FlexInt) Int() int {
	return int(f)
}

// BatchLabel is a lab batch number rendered as "Batch n". It also accepts bare numbers.
type BatchLabel int

// MarshalJSON implements json.Marshaler.
func (b BatchLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("Batch %d", int(b)))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BatchLabel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n FlexInt
		if nerr := n.UnmarshalJSON(data); nerr != nil {
			return fmt.Errorf("batch must be a number or \"Batch n\": %w", nerr)
		}
		*b = BatchLabel(n)
		return nil
	}
	s = strings.TrimSpace(s)
	if len(s) >= 5 && strings.EqualFold(s[:5], "batch") {
		s = strings.TrimSpace(s[5:])
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("batch %q is not a number", s)
	}
	*b = BatchLabel(n)
	return nil
}

// GridRequest overrides the configured weekly grid for one request.
type GridRequest struct {
	Days        []string `json:"days" validate:"omitempty,max=7"`
	Periods     []string `json:"periods" validate:"omitempty,min=2"`
	LunchPeriod *int     `json:"lunch_period,omitempty" validate:"omitempty,min=0"`
}

// LabSummaryRow is one batch session of a lab rotation, as returned by lab generation
// and posted back as lab_summary.
type LabSummaryRow struct {
	Year    FlexInt    `json:"Year" validate:"min=1"`
	Day     string     `json:"Day" validate:"required"`
	Time    string     `json:"Time" validate:"required"`
	Section string     `json:"Section" validate:"required"`
	Subject string     `json:"Subject" validate:"required"`
	Batch   BatchLabel `json:"Batch" validate:"min=1"`
	Lab     string     `json:"Lab,omitempty"`
	Teacher string     `json:"Teacher,omitempty"`
}

// GenerateTimetableRequest is the core generation payload posted by the admin wizard.
// Year-keyed maps use the year number as a string key.
type GenerateTimetableRequest struct {
	YearsSections          map[string][]string  `json:"years_sections" validate:"required,min=1"`
	NumSubjects            map[string]FlexInt   `json:"num_subjects"`
	SubjectInput           map[string][]string  `json:"subject_input" validate:"required,min=1"`
	HoursInput             map[string]FlexInt   `json:"hours_input" validate:"required,min=1"`
	Lang                   map[string]string    `json:"lang"`
	LangHours              map[string]FlexInt   `json:"lang_hours"`
	TeacherName            map[string][]string  `json:"teacher_name"`
	Rooms                  []string             `json:"rooms"`
	NumClassrooms          FlexInt              `json:"num_classrooms" validate:"min=0"`
	OptionalSubject        map[string][]string  `json:"optional_subject"`
	OptionalSubjectHours   map[string][]FlexInt `json:"optional_subject_hours"`
	OptionalSubjectTeacher map[string][]string  `json:"optional_subject_teacher"`
	LabSummary             []LabSummaryRow      `json:"lab_summary" validate:"omitempty,dive"`
	Grid                   *GridRequest         `json:"grid,omitempty" validate:"omitempty"`

	// Year and Section turn the request into a stored student timetable lookup.
	Year    FlexInt `json:"year,omitempty"`
	Section string  `json:"section,omitempty"`
}

// IsLookup reports whether the payload asks for a stored student timetable instead of a generation.
func (r GenerateTimetableRequest) IsLookup() bool {
	return len(r.YearsSections) == 0 && r.Year > 0 && strings.TrimSpace(r.Section) != ""
}

// LabTimetableRequest is the lab rotation payload.
type LabTimetableRequest struct {
	YearsSections     map[string][]string `json:"years_sections" validate:"required,min=1"`
	LabsPerSections   map[string]FlexInt  `json:"labs_per_sections" validate:"required"`
	SubjectsPerYear   map[string][]string `json:"subjects_per_year"`
	BatchesPerSection map[string]FlexInt  `json:"batches_per_section"`
	Labs              []string            `json:"labs"`
	LabTeachers       map[string][]string `json:"lab_teachers"`
	Grid              *GridRequest        `json:"grid,omitempty" validate:"omitempty"`
}

// TableCell is one period column of a TableRow.
type TableCell struct {
	Period string
	Text   string
}

// TableRow is one day of a timetable. It marshals as an object whose first key is "Day",
// followed by the period labels in grid order.
type TableRow struct {
	Day   string
	Cells []TableCell
}

// MarshalJSON implements json.Marshaler.
func (r TableRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"Day":`)
	day, err := json.Marshal(r.Day)
	if err != nil {
		return nil, err
	}
	buf.Write(day)
	for _, cell := range r.Cells {
		key, err := json.Marshal(cell.Period)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cell.Text)
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler and keeps the period order of the document.
func (r *TableRow) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("table row must be an object")
	}
	row := TableRow{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("table row %q: %w", key, err)
		}
		if key == "Day" {
			row.Day = value
			continue
		}
		row.Cells = append(row.Cells, TableCell{Period: key, Text: value})
	}
	*r = row
	return nil
}

// SectionTimetable is the weekly table of one section.
type SectionTimetable struct {
	Year      int        `json:"year"`
	Section   string     `json:"section"`
	TableData []TableRow `json:"table_data"`
}

// TeacherTimetable is the weekly table of one teacher.
type TeacherTimetable struct {
	Teacher   string     `json:"teacher"`
	TableData []TableRow `json:"table_data"`
}

// AssignmentResponse is one placement in flat form.
type AssignmentResponse struct {
	Year    int    `json:"year"`
	Section string `json:"section"`
	Subject string `json:"subject"`
	Kind    string `json:"kind"`
	Teacher string `json:"teacher,omitempty"`
	Room    string `json:"room,omitempty"`
	Day     string `json:"day"`
	Period  int    `json:"period"`
	Length  int    `json:"length"`
	Time    string `json:"time"`
	Batch   int    `json:"batch,omitempty"`
	Pinned  bool   `json:"pinned,omitempty"`
}

// GenerationStats summarises one solver run.
type GenerationStats struct {
	Demands     int   `json:"demands"`
	Units       int   `json:"units"`
	Assignments int   `json:"assignments"`
	Backtracks  int   `json:"backtracks"`
	ElapsedMS   int64 `json:"elapsed_ms"`
}

// GenerateTimetableResponse is the result of a core generation.
type GenerateTimetableResponse struct {
	GenerationID     string               `json:"generation_id"`
	StudentTimetable []SectionTimetable   `json:"student_timetable"`
	TeacherTimetable []TeacherTimetable   `json:"teacher_timetable"`
	Assignments      []AssignmentResponse `json:"assignments"`
	Stats            GenerationStats      `json:"stats"`
}

// LegacyTimetableResponse is the bare shape the admin wizard expects.
type LegacyTimetableResponse struct {
	StudentTimetable []SectionTimetable `json:"student_timetable"`
	TeacherTimetable []TeacherTimetable `json:"teacher_timetable"`
}

// LabTimetableResponse is the result of a lab rotation generation.
type LabTimetableResponse struct {
	GenerationID string               `json:"generation_id"`
	Rows         []LabSummaryRow      `json:"rows"`
	Assignments  []AssignmentResponse `json:"assignments"`
	Stats        GenerationStats      `json:"stats"`
}

// TimetableViewResponse is a stored student or teacher table.
type TimetableViewResponse struct {
	ID           string     `json:"id"`
	GenerationID string     `json:"generation_id"`
	Audience     string     `json:"audience"`
	Year         int        `json:"year,omitempty"`
	Section      string     `json:"section,omitempty"`
	Teacher      string     `json:"teacher,omitempty"`
	TableData    []TableRow `json:"table_data"`
	CreatedAt    string     `json:"created_at"`
}

// TimetableGenerationResponse is a stored generation record.
type TimetableGenerationResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	RequestHash string          `json:"request_hash"`
	Request     json.RawMessage `json:"request"`
	Result      json.RawMessage `json:"result"`
	Units       int             `json:"units"`
	Backtracks  int             `json:"backtracks"`
	DurationMS  int64           `json:"duration_ms"`
	CreatedBy   string          `json:"created_by,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// LegacyTeacherRecord is one row of the teacher dashboard lookup. Timetable holds a JSON
// encoded TeacherTimetable.
type LegacyTeacherRecord struct {
	ID        string `json:"id"`
	Timetable string `json:"timetable"`
}
