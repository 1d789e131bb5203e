package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/civicreport/internal/application"
	"github.com/atvirokodosprendimai/civicreport/internal/domain"
)

// Server exposes the report service over JSON-RPC 2.0 on a unix socket for
// local tooling. Every method except auth.login carries a bearer token in its
// params.
type Server struct {
	service  *application.ReportService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.ReportService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "auth.login":
		return s.handleAuthLogin(ctx, req)
	case "auth.whoami":
		identity, rpcResp, ok := s.authz(ctx, req)
		if !ok {
			return rpcResp
		}
		return result(req.ID, map[string]any{
			"user_id":   identity.User.ID,
			"email":     identity.User.Email,
			"full_name": identity.Profile.FullName,
			"role":      identity.Profile.Role,
		})
	case "reports.create":
		return s.handleReportsCreate(ctx, req)
	case "reports.list":
		return s.handleReportsList(ctx, req)
	case "reports.get":
		return s.handleReportsGet(ctx, req)
	case "reports.history":
		return s.handleReportsHistory(ctx, req)
	case "reports.transition":
		return s.handleReportsTransition(ctx, req)
	case "reports.rate":
		return s.handleReportsRate(ctx, req)
	case "reports.assign":
		return s.handleReportsAssign(ctx, req)
	case "reports.priority":
		return s.handleReportsPriority(ctx, req)
	case "reports.stats":
		return s.handleReportsStats(ctx, req)
	case "access.profiles.list":
		return s.handleProfilesList(ctx, req)
	case "access.role.set":
		return s.handleRoleSet(ctx, req)
	case "audit.logs":
		return s.handleAuditLogs(ctx, req)
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

func (s *Server) handleAuthLogin(ctx context.Context, req request) response {
	var p struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		TokenName string `json:"token_name"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	identity, token, err := s.service.LoginWithAPIToken(ctx, p.Email, p.Password, p.TokenName, nil)
	if err != nil {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "invalid credentials"}, ID: req.ID}
	}
	return result(req.ID, map[string]any{"user_id": identity.User.ID, "email": identity.User.Email, "token": token})
}

func (s *Server) handleReportsCreate(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token string `json:"token"`
		application.CreateReportInput
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	report, err := s.service.CreateReport(ctx, identity, p.CreateReportInput)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsList(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		Status   string `json:"status"`
		Category string `json:"category"`
		Priority string `json:"priority"`
		OwnerID  string `json:"owner_id"`
		Q        string `json:"q"`
		Limit    int    `json:"limit"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	list, err := s.service.ListReports(ctx, identity, domain.ListCriteria{
		Status:   p.Status,
		Category: p.Category,
		Priority: p.Priority,
		OwnerID:  p.OwnerID,
		Search:   p.Q,
	}, p.Limit)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, list)
}

func (s *Server) handleReportsGet(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		ReportID string `json:"report_id"`
		Number   string `json:"number"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}

	if strings.TrimSpace(p.Number) != "" {
		report, err := s.service.GetReportByNumber(ctx, identity, p.Number)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, report)
	}

	report, err := s.service.GetReport(ctx, identity, p.ReportID)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsHistory(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		ReportID string `json:"report_id"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	updates, err := s.service.GetReportHistory(ctx, identity, p.ReportID)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, updates)
}

func (s *Server) handleReportsTransition(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token         string `json:"token"`
		ReportID      string `json:"report_id"`
		To            string `json:"to"`
		Message       string `json:"message"`
		InternalNotes string `json:"internal_notes"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	report, err := s.service.TransitionStatus(ctx, identity, application.TransitionInput{
		ReportID:      p.ReportID,
		To:            p.To,
		Message:       p.Message,
		InternalNotes: p.InternalNotes,
	})
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsRate(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		ReportID string `json:"report_id"`
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	report, err := s.service.RateReport(ctx, identity, p.ReportID, p.Rating, p.Feedback)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsAssign(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token                   string     `json:"token"`
		ReportID                string     `json:"report_id"`
		Department              string     `json:"department"`
		OfficerID               string     `json:"officer_id"`
		EstimatedResolutionDate *time.Time `json:"estimated_resolution_date"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	report, err := s.service.AssignReport(ctx, identity, application.AssignInput{
		ReportID:                p.ReportID,
		Department:              p.Department,
		OfficerID:               p.OfficerID,
		EstimatedResolutionDate: p.EstimatedResolutionDate,
	})
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsPriority(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		ReportID string `json:"report_id"`
		Priority string `json:"priority"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	report, err := s.service.SetPriority(ctx, identity, p.ReportID, p.Priority)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, report)
}

func (s *Server) handleReportsStats(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token    string `json:"token"`
		Status   string `json:"status"`
		Category string `json:"category"`
		Priority string `json:"priority"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	stats, err := s.service.ReportStats(ctx, identity, domain.ListCriteria{
		Status:   p.Status,
		Category: p.Category,
		Priority: p.Priority,
	})
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, stats)
}

func (s *Server) handleProfilesList(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token string `json:"token"`
		Role  string `json:"role"`
		Q     string `json:"q"`
		Limit int    `json:"limit"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	list, err := s.service.ListProfiles(ctx, identity, p.Role, p.Q, p.Limit)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, list)
}

func (s *Server) handleRoleSet(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token      string `json:"token"`
		UserID     string `json:"user_id"`
		Role       string `json:"role"`
		Department string `json:"department"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	profile, err := s.service.SetRole(ctx, identity, p.UserID, domain.Role(p.Role), p.Department)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, profile)
}

func (s *Server) handleAuditLogs(ctx context.Context, req request) response {
	identity, rpcResp, ok := s.authz(ctx, req)
	if !ok {
		return rpcResp
	}
	var p struct {
		Token string `json:"token"`
		Limit int    `json:"limit"`
	}
	if !decodeParams(req.Params, &p) {
		return invalidParams(req.ID)
	}
	list, err := s.service.ListAuditLogs(ctx, identity, p.Limit)
	if err != nil {
		return appError(req.ID, err)
	}
	return result(req.ID, list)
}

func (s *Server) authz(ctx context.Context, req request) (domain.Identity, response, bool) {
	var p struct {
		Token string `json:"token"`
	}
	if !decodeParams(req.Params, &p) {
		return domain.Identity{}, invalidParams(req.ID), false
	}
	identity, err := s.service.AuthenticateBearerToken(ctx, p.Token)
	if err != nil {
		return domain.Identity{}, response{JSONRPC: "2.0", Error: &rpcError{Code: 40100, Message: "unauthorized"}, ID: req.ID}, false
	}
	return identity, response{}, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func result(id any, payload any) response {
	return response{JSONRPC: "2.0", Result: payload, ID: id}
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

// appError keeps the domain error text and signals the kind through the code
// so terse clients can branch without string matching.
func appError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: codeForError(err), Message: err.Error()}, ID: id}
}

func codeForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidTransition):
		return 40000
	case errors.Is(err, domain.ErrUnauthenticated):
		return 40100
	case errors.Is(err, domain.ErrForbidden):
		return 40300
	case errors.Is(err, domain.ErrNotFound):
		return 40400
	case errors.Is(err, domain.ErrAlreadyRated),
		errors.Is(err, domain.ErrNotYetResolvable),
		errors.Is(err, domain.ErrConcurrentModification):
		return 40900
	case errors.Is(err, domain.ErrIdentifierUnavailable):
		return 50300
	default:
		return 50000
	}
}
