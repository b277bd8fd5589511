package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"campusconnect/internal/course"
	"campusconnect/internal/department"
	"campusconnect/internal/importer"
	"campusconnect/internal/student"
)

// Import accepts a multipart CSV upload for the kind in the path and runs it
// as one atomic batch.
func (h *Handler) Import(c *gin.Context) {
	kind, err := importer.ParseKind(c.Param("kind"))
	if err != nil {
		writeError(c, err)
		return
	}
	file, header, err := c.Request.FormFile("csv_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "csv_file field required"})
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please upload a .csv file"})
		return
	}
	result, err := h.imports.Import(c.Request.Context(), mustAuthz(c), kind, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDepartments returns all departments.
func (h *Handler) ListDepartments(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if departments == nil {
		departments = []department.Department{}
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

// CreateDepartment adds one department.
func (h *Handler) CreateDepartment(c *gin.Context) {
	var req struct {
		Code             string `json:"code" binding:"required"`
		Name             string `json:"name" binding:"required"`
		HeadOfDepartment string `json:"head_of_department"`
		Description      string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.departments.CreateIfAbsent(c.Request.Context(), department.Department{
		Code:             req.Code,
		Name:             req.Name,
		HeadOfDepartment: req.HeadOfDepartment,
		Description:      req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusConflict, gin.H{"error": "a department with this code already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// DeleteDepartment removes a department unless it is still referenced.
func (h *Handler) DeleteDepartment(c *gin.Context) {
	if err := h.departments.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// studentView decorates a student with the derived defaulter flag.
type studentView struct {
	student.Student
	IsDefaulter bool `json:"is_defaulter"`
}

// ListStudents returns students with the derived defaulter flag.
func (h *Handler) ListStudents(c *gin.Context) {
	limit, offset := 50, 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	students, err := h.students.List(c.Request.Context(), c.Query("department_id"), c.Query("status"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]studentView, 0, len(students))
	for _, s := range students {
		views = append(views, studentView{Student: s, IsDefaulter: h.att.IsDefaulter(s.AttendancePercent)})
	}
	c.JSON(http.StatusOK, gin.H{"students": views, "defaulter_threshold": h.att.Threshold()})
}

// GetStudent returns one student by external student number.
func (h *Handler) GetStudent(c *gin.Context) {
	s, err := h.students.GetByStudentID(c.Request.Context(), c.Param("studentID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, studentView{Student: *s, IsDefaulter: h.att.IsDefaulter(s.AttendancePercent)})
}

// ListFaculty returns all faculty profiles.
func (h *Handler) ListFaculty(c *gin.Context) {
	members, err := h.faculty.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"faculty": members})
}

// ListCourses returns active courses.
func (h *Handler) ListCourses(c *gin.Context) {
	courses, err := h.courses.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if courses == nil {
		courses = []course.Course{}
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

// CreateCourse adds one course.
func (h *Handler) CreateCourse(c *gin.Context) {
	var req struct {
		Code         string `json:"code" binding:"required"`
		Name         string `json:"name" binding:"required"`
		DepartmentID string `json:"department_id"`
		Year         int    `json:"year"`
		Semester     int    `json:"semester"`
		Credits      int    `json:"credits"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.courses.CreateIfAbsent(c.Request.Context(), course.Course{
		Code:         req.Code,
		Name:         req.Name,
		DepartmentID: req.DepartmentID,
		Year:         req.Year,
		Semester:     req.Semester,
		Credits:      req.Credits,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusConflict, gin.H{"error": "a course with this code already exists"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created"})
}

// AddPrerequisite links a prerequisite to a course, rejecting cycles.
func (h *Handler) AddPrerequisite(c *gin.Context) {
	var req struct {
		PrerequisiteID string `json:"prerequisite_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.courses.AddPrerequisite(c.Request.Context(), c.Param("id"), req.PrerequisiteID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

// ListPrerequisites returns a course's direct prerequisites.
func (h *Handler) ListPrerequisites(c *gin.Context) {
	ids, err := h.courses.Prerequisites(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"prerequisites": ids})
}
