package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"github.com/xuri/excelize/v2"
)

// TaskReportRequest DTO. TaskIDs, when given, replaces the full task list
// before the other filters apply. Dates bound due_date.
type TaskReportRequest struct {
	TaskIDs  []int64 `json:"task_ids" binding:"omitempty,dive,gt=0"`
	Status   *string `json:"status" binding:"omitempty,oneof=pending in_progress completed overdue"`
	Category *string `json:"category"`
	Priority *string `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	DateFrom *string `json:"date_from"`
	DateTo   *string `json:"date_to"`
}

// SummaryReportRequest DTO
type SummaryReportRequest struct {
	DateFrom                 *string `json:"date_from"`
	DateTo                   *string `json:"date_to"`
	IncludeUserStats         bool    `json:"include_user_stats"`
	IncludeCategoryBreakdown bool    `json:"include_category_breakdown"`
}

const userReportDays = 30

// dueRange parses an optional due_date range and rejects an inverted one.
func dueRange(from, to *string) (*time.Time, *time.Time, error) {
	start, err := parseOptionalDate(from)
	if err != nil {
		return nil, nil, err
	}
	end, err := parseOptionalDate(to)
	if err != nil {
		return nil, nil, err
	}
	if start != nil && end != nil && end.Before(*start) {
		return nil, nil, validationError("date_to must not be before date_from")
	}
	return start, end, nil
}

// dueWithin reports whether t is due inside [from, to]. Undated tasks only match an open range.
func dueWithin(t models.Task, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	due := day(*t.DueDate)
	if from != nil && due.Before(*from) {
		return false
	}
	return to == nil || !due.After(*to)
}

func isOverdue(t models.Task, today time.Time) bool {
	if t.Status == models.TaskOverdue {
		return true
	}
	return t.Status != models.TaskCompleted && t.DueDate != nil && day(*t.DueDate).Before(today)
}

func breakdown(tasks []models.Task, today time.Time, byCategory bool) models.TaskBreakdown {
	b := models.TaskBreakdown{
		Total:      len(tasks),
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
	}
	if byCategory {
		b.ByCategory = map[string]int{}
	}
	for _, t := range tasks {
		b.ByStatus[t.Status]++
		b.ByPriority[t.Priority]++
		if byCategory {
			b.ByCategory[t.Category]++
		}
		switch t.Status {
		case models.TaskCompleted:
			b.Completed++
		case models.TaskPending:
			b.Pending++
		}
		if isOverdue(t, today) {
			b.Overdue++
		}
	}
	return b
}

func (s *reportService) TaskReport(ctx context.Context, actor models.Principal, req TaskReportRequest) (*models.TaskReport, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	from, to, err := dueRange(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}

	var filter models.TaskFilter
	if req.Status != nil && *req.Status != "" {
		filter.Status = req.Status
	}
	if err := scopeToActor(ctx, s.work, actor, &filter); err != nil {
		return nil, err
	}
	all, err := s.work.Tasks.ListTasks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	wanted := map[int64]bool{}
	for _, id := range req.TaskIDs {
		wanted[id] = true
	}
	category := strings.TrimSpace(utils.DerefString(req.Category, ""))
	priority := utils.DerefString(req.Priority, "")

	tasks := []models.Task{}
	for _, t := range all {
		if len(wanted) > 0 && !wanted[t.ID] {
			continue
		}
		if category != "" && t.Category != category {
			continue
		}
		if priority != "" && t.Priority != priority {
			continue
		}
		if !dueWithin(t, from, to) {
			continue
		}
		tasks = append(tasks, t)
	}

	now := s.now()
	return &models.TaskReport{
		GeneratedAt: now,
		Filters: models.TaskFilterSet{
			TaskIDs:  req.TaskIDs,
			Status:   filter.Status,
			Category: trimmedPtr(req.Category),
			Priority: trimmedPtr(req.Priority),
			DateFrom: trimmedPtr(req.DateFrom),
			DateTo:   trimmedPtr(req.DateTo),
		},
		Stats: breakdown(tasks, day(now), true),
		Tasks: tasks,
	}, nil
}

func (s *reportService) UserReport(ctx context.Context, actor models.Principal, userID int64, dateFrom, dateTo string) (*models.UserReport, error) {
	if !isManagement(actor.Role) && actor.UserID != userID {
		return nil, fmt.Errorf("%w: you can only report on yourself", ErrForbidden)
	}
	now := s.now()
	to := day(now)
	from := to.AddDate(0, 0, -userReportDays)
	if strings.TrimSpace(dateFrom) != "" {
		d, err := parseDate(dateFrom)
		if err != nil {
			return nil, err
		}
		from = d
	}
	if strings.TrimSpace(dateTo) != "" {
		d, err := parseDate(dateTo)
		if err != nil {
			return nil, err
		}
		to = d
	}
	if to.Before(from) {
		return nil, validationError("dateTo must not be before dateFrom")
	}

	user, err := s.work.Users.FindUserByID(ctx, s.work.Tx.Executor(), userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	user.PasswordHash = ""

	shifts, err := s.work.Schedules.ListByUser(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load shifts: %w", err)
	}
	tasks, err := s.work.Tasks.ListTasks(ctx, models.TaskFilter{AssignedTo: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return &models.UserReport{
		GeneratedAt: now,
		User:        *user,
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		Stats:       breakdown(tasks, day(now), true),
		Tasks:       tasks,
		Shifts:      shifts,
	}, nil
}

func (s *reportService) SummaryReport(ctx context.Context, actor models.Principal, req SummaryReportRequest) (*models.SummaryReport, error) {
	if err := requireManagement(actor); err != nil {
		return nil, err
	}
	from, to, err := dueRange(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}
	all, err := s.work.Tasks.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := all[:0]
	for _, t := range all {
		if dueWithin(t, from, to) {
			tasks = append(tasks, t)
		}
	}

	now := s.now()
	today := day(now)
	report := &models.SummaryReport{
		GeneratedAt: now,
		DateFrom:    trimmedPtr(req.DateFrom),
		DateTo:      trimmedPtr(req.DateTo),
		Stats:       breakdown(tasks, today, req.IncludeCategoryBreakdown),
	}
	if !req.IncludeUserStats {
		return report, nil
	}

	users, err := s.work.Users.ListUsers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	index := make(map[int64]int, len(users))
	report.Users = make([]models.UserTaskStats, 0, len(users))
	for _, u := range users {
		index[u.ID] = len(report.Users)
		report.Users = append(report.Users, models.UserTaskStats{UserID: u.ID, FullName: u.FullName, Role: u.Role})
	}
	for _, t := range tasks {
		if t.AssignedTo == nil {
			continue
		}
		i, ok := index[*t.AssignedTo]
		if !ok {
			continue
		}
		row := &report.Users[i]
		row.Assigned++
		switch t.Status {
		case models.TaskCompleted:
			row.Completed++
		case models.TaskPending:
			row.Pending++
		}
		if isOverdue(t, today) {
			row.Overdue++
		}
	}
	return report, nil
}

// --- Workbooks ---

const (
	tasksSheet   = "Tasks"
	summarySheet = "Summary"
	shiftsSheet  = "Shifts"
	usersSheet   = "Users"
)

var taskHeaders = []interface{}{"ID", "Title", "Category", "Priority", "Status", "Assigned To", "Due Date", "Completed At"}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func taskRows(tasks []models.Task) [][]interface{} {
	rows := make([][]interface{}, 0, len(tasks))
	for _, t := range tasks {
		assignee := ""
		switch {
		case t.AssignedName != nil:
			assignee = *t.AssignedName
		case t.AssignmentType == models.AssignShiftBased:
			assignee = "Shift"
		}
		rows = append(rows, []interface{}{t.ID, t.Title, t.Category, t.Priority, t.Status, assignee, dateCell(t.DueDate), dateCell(t.CompletedAt)})
	}
	return rows
}

// breakdownRows lists the counts as metric/value pairs, maps in key order.
func breakdownRows(b models.TaskBreakdown) [][]interface{} {
	rows := [][]interface{}{
		{"Total", b.Total},
		{"Completed", b.Completed},
		{"Pending", b.Pending},
		{"Overdue", b.Overdue},
	}
	for _, k := range slices.Sorted(maps.Keys(b.ByPriority)) {
		rows = append(rows, []interface{}{"Priority: " + k, b.ByPriority[k]})
	}
	for _, k := range slices.Sorted(maps.Keys(b.ByCategory)) {
		rows = append(rows, []interface{}{"Category: " + k, b.ByCategory[k]})
	}
	return rows
}

var metricHeaders = []interface{}{"Metric", "Value"}

func finishWorkbook(f *excelize.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteTaskReportWorkbook renders report as a Tasks sheet and a Summary sheet.
func WriteTaskReportWorkbook(w io.Writer, report *models.TaskReport) error {
	f, err := newWorkbook(tasksSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeSheet(f, tasksSheet, taskHeaders, taskRows(report.Tasks)); err != nil {
		return err
	}
	if err := writeSheet(f, summarySheet, metricHeaders, breakdownRows(report.Stats)); err != nil {
		return err
	}
	return finishWorkbook(f, w)
}

// WriteUserReportWorkbook renders report with the user's details first, then tasks and shifts.
func WriteUserReportWorkbook(w io.Writer, report *models.UserReport) error {
	f, err := newWorkbook(summarySheet)
	if err != nil {
		return err
	}
	defer f.Close()

	info := [][]interface{}{
		{"Name", report.User.FullName},
		{"Username", report.User.Username},
		{"Role", report.User.Role},
		{"From", report.From},
		{"To", report.To},
	}
	if err := writeSheet(f, summarySheet, metricHeaders, append(info, breakdownRows(report.Stats)...)); err != nil {
		return err
	}
	if err := writeSheet(f, tasksSheet, taskHeaders, taskRows(report.Tasks)); err != nil {
		return err
	}
	shifts := make([][]interface{}, 0, len(report.Shifts))
	for _, sh := range report.Shifts {
		role := ""
		if sh.Role != nil {
			role = *sh.Role
		}
		notes := ""
		if sh.Notes != nil {
			notes = *sh.Notes
		}
		shifts = append(shifts, []interface{}{sh.ShiftDate.Format(dateLayout), sh.ShiftStart, sh.ShiftEnd, role, notes})
	}
	if err := writeSheet(f, shiftsSheet, []interface{}{"Date", "Start", "End", "Role", "Notes"}, shifts); err != nil {
		return err
	}
	return finishWorkbook(f, w)
}

// WriteSummaryWorkbook renders report. The Users sheet appears only when user stats were requested.
func WriteSummaryWorkbook(w io.Writer, report *models.SummaryReport) error {
	f, err := newWorkbook(summarySheet)
	if err != nil {
		return err
	}
	defer f.Close()

	rows := [][]interface{}{
		{"From", utils.DerefString(report.DateFrom, "")},
		{"To", utils.DerefString(report.DateTo, "")},
	}
	if err := writeSheet(f, summarySheet, metricHeaders, append(rows, breakdownRows(report.Stats)...)); err != nil {
		return err
	}
	if len(report.Users) > 0 {
		users := make([][]interface{}, 0, len(report.Users))
		for _, u := range report.Users {
			users = append(users, []interface{}{u.FullName, u.Role, u.Assigned, u.Completed, u.Pending, u.Overdue})
		}
		headers := []interface{}{"User", "Role", "Assigned", "Completed", "Pending", "Overdue"}
		if err := writeSheet(f, usersSheet, headers, users); err != nil {
			return err
		}
	}
	return finishWorkbook(f, w)
}
