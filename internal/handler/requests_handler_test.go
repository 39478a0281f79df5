package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"cashops/internal/database"
	"cashops/internal/middleware"
	"cashops/internal/model"
	"cashops/internal/registry"
	"cashops/internal/repository"
	"cashops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	txManager := repository.NewTransactionManager(db)
	approvals := repository.NewApprovalRepository(db)
	audits := repository.NewAuditRepository(db)
	guard := service.NewGuard()
	workflow := service.NewWorkflowService(db, txManager, approvals, audits, registry.Default(), guard, nil)

	router := gin.New()
	NewApprovalHandler(workflow).RegisterRoutes(router.Group(""))
	NewRequestsHandler(workflow).RegisterRoutes(router.Group(""))
	return router, db
}

func bearerToken(t *testing.T, employeeID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  employeeID,
		"name": "Test " + employeeID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func doJSON(t *testing.T, router *gin.Engine, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func submittedApprovalID(t *testing.T, rec *httptest.ResponseRecorder) uint64 {
	t.Helper()
	var envelope struct {
		Data model.ApprovalRequest `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
	return envelope.Data.ApprovalID
}

func TestRequestsRequireAuthentication(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", "", gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCheckerCannotSubmit(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", bearerToken(t, "EMP002", model.RoleChecker), gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestSubmitAndApproveOverHTTP(t *testing.T) {
	router, db := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", bearerToken(t, "EMP001", model.RoleMaker), gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard new pickup vendor",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp", "effective_from": "2026-04-01"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	approvalID := submittedApprovalID(t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/vendors/requests/"+strconv.FormatUint(approvalID, 10)+"/approve",
		bearerToken(t, "EMP002", model.RoleChecker), gin.H{"comment": "verified"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}

	var vendor model.VendorMaster
	if err := db.First(&vendor, "vendor_code = ?", "CMS01").Error; err != nil {
		t.Fatalf("load vendor: %v", err)
	}
	if vendor.Status != model.EntityStatusActive {
		t.Fatalf("vendor status = %s, want ACTIVE", vendor.Status)
	}
}

func TestApproveThroughWrongCollection(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", bearerToken(t, "EMP001", model.RoleMaker), gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	approvalID := submittedApprovalID(t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/bank-stores/requests/"+strconv.FormatUint(approvalID, 10)+"/approve",
		bearerToken(t, "EMP002", model.RoleChecker), gin.H{"comment": "verified"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSelfApprovalOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", bearerToken(t, "EMP001", model.RoleMaker), gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	approvalID := submittedApprovalID(t, rec)

	// Same employee, now wearing the checker role.
	rec = doJSON(t, router, http.MethodPost, "/api/vendors/requests/"+strconv.FormatUint(approvalID, 10)+"/approve",
		bearerToken(t, "EMP001", model.RoleChecker), gin.H{"comment": "self approve"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestClarificationFlowOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/vendors/requests", bearerToken(t, "EMP001", model.RoleMaker), gin.H{
		"action":        model.ActionCreate,
		"reason":        "onboard",
		"proposed_data": gin.H{"vendor_code": "CMS01", "vendor_name": "CMS Corp"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body.String())
	}
	approvalID := strconv.FormatUint(submittedApprovalID(t, rec), 10)

	rec = doJSON(t, router, http.MethodPost, "/api/approvals/"+approvalID+"/clarify",
		bearerToken(t, "EMP002", model.RoleChecker), gin.H{"comment": "which contract?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("clarify status = %d: %s", rec.Code, rec.Body.String())
	}

	// The maker sees it in their clarification queue.
	rec = doJSON(t, router, http.MethodGet, "/api/approvals/clarifications", bearerToken(t, "EMP001", model.RoleMaker), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clarifications status = %d: %s", rec.Code, rec.Body.String())
	}
	var listEnvelope struct {
		Data struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listEnvelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listEnvelope.Data.Total != 1 {
		t.Fatalf("clarification total = %d, want 1", listEnvelope.Data.Total)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/approvals/"+approvalID+"/resubmit",
		bearerToken(t, "EMP001", model.RoleMaker), gin.H{"comment": "contract C-2026-17"})
	if rec.Code != http.StatusOK {
		t.Fatalf("resubmit status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/vendors/requests/"+approvalID+"/approve",
		bearerToken(t, "EMP002", model.RoleChecker), gin.H{"comment": "verified"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approve status = %d: %s", rec.Code, rec.Body.String())
	}
}
