package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"campusconnect/internal/account"
	"campusconnect/internal/apperr"
	"campusconnect/internal/attendance"
	"campusconnect/internal/auth"
	"campusconnect/internal/config"
	"campusconnect/internal/course"
	"campusconnect/internal/department"
	"campusconnect/internal/evidence"
	"campusconnect/internal/faculty"
	"campusconnect/internal/importer"
	"campusconnect/internal/student"
)

// Handler carries the services the HTTP surface exposes.
type Handler struct {
	cfg         config.App
	accounts    *account.Repository
	departments *department.Repository
	students    *student.Repository
	faculty     *faculty.Repository
	courses     *course.Repository
	att         *attendance.Service
	imports     *importer.Service
	evidence    *evidence.Uploader // nil if not configured
}

func New(
	cfg config.App,
	accounts *account.Repository,
	departments *department.Repository,
	students *student.Repository,
	facultyRepo *faculty.Repository,
	courses *course.Repository,
	att *attendance.Service,
	imports *importer.Service,
	uploader *evidence.Uploader,
) *Handler {
	return &Handler{
		cfg:         cfg,
		accounts:    accounts,
		departments: departments,
		students:    students,
		faculty:     facultyRepo,
		courses:     courses,
		att:         att,
		imports:     imports,
		evidence:    uploader,
	}
}

// mustAuthz extracts the authorization context; RequireAuth guarantees it.
func mustAuthz(c *gin.Context) auth.Context {
	authz, _ := auth.FromGin(c)
	return authz
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "fields": verr.Fields})
		return
	}
	var rerr *apperr.ReferenceError
	if errors.As(err, &rerr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rerr.Error()})
		return
	}
	var cerr *apperr.ConflictError
	if errors.As(err, &cerr) {
		c.JSON(http.StatusConflict, gin.H{"error": cerr.Error()})
		return
	}
	var lerr *apperr.LockedRecordError
	if errors.As(err, &lerr) {
		c.JSON(http.StatusLocked, gin.H{"error": lerr.Error()})
		return
	}
	switch {
	case errors.Is(err, attendance.ErrNotFound),
		errors.Is(err, attendance.ErrStudentNotFound),
		errors.Is(err, student.ErrNotFound),
		errors.Is(err, faculty.ErrNotFound),
		errors.Is(err, department.ErrNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, account.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// Login exchanges username/password for a JWT pair.
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	tokens, err := auth.Issue(acct.ID, acct.Role, h.cfg.JWTIssuer, h.cfg.JWTSigningKey, h.cfg.AccessTTL, h.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"role":          acct.Role,
	})
}

// ChangePassword replaces the caller's credential. Imported accounts start
// with their external id as a bootstrap password and should call this first.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.OldPassword); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := h.accounts.SetPassword(c.Request.Context(), req.Username, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password changed"})
}

// UploadEvidence stores an evidence image and returns its public URL for
// attaching to an attendance record.
func (h *Handler) UploadEvidence(c *gin.Context) {
	if h.evidence == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "evidence storage not configured"})
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
		return
	}
	result, err := h.evidence.Upload(data, header.Filename)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "evidence upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.SecureURL, "public_id": result.PublicID, "bytes": result.Bytes})
}
