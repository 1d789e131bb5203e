package main

import (
	"context"
	"net/http"
	"net/url"
)

func doRegister(ctx context.Context, cfg cliConfig, payload map[string]any, out any) error {
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/register", payload, out)
}

func doLogin(ctx context.Context, cfg cliConfig, email, password, tokenName string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.login", map[string]any{
			"email":      email,
			"password":   password,
			"token_name": tokenName,
		}, out)
	}
	client := newAPIClient(cfg.Server, "")
	return client.request(ctx, http.MethodPost, "/api/auth/login", map[string]any{
		"email":      email,
		"password":   password,
		"mode":       "token",
		"token_name": tokenName,
	}, out)
}

func doWhoAmI(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "auth.whoami", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/auth/whoami", nil, out)
}

func doLogout(ctx context.Context, cfg cliConfig) error {
	if cfg.Transport == "uds" {
		return nil
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func doReportsCreate(ctx context.Context, cfg cliConfig, payload map[string]any, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		payload["token"] = cfg.Token
		return client.call(ctx, "reports.create", payload, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/reports", payload, out)
}

func doReportsList(ctx context.Context, cfg cliConfig, status, category, priority, q string, limit int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.list", map[string]any{
			"token":    cfg.Token,
			"status":   status,
			"category": category,
			"priority": priority,
			"q":        q,
			"limit":    limit,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	params := url.Values{}
	if status != "" {
		params.Set("status", status)
	}
	if category != "" {
		params.Set("category", category)
	}
	if priority != "" {
		params.Set("priority", priority)
	}
	if q != "" {
		params.Set("q", q)
	}
	path := "/api/reports"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doReportsGet(ctx context.Context, cfg cliConfig, reportID, number string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.get", map[string]any{"token": cfg.Token, "report_id": reportID, "number": number}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	if number != "" {
		return client.request(ctx, http.MethodGet, "/api/reports/number/"+url.PathEscape(number), nil, out)
	}
	return client.request(ctx, http.MethodGet, "/api/reports/"+url.PathEscape(reportID), nil, out)
}

func doReportsHistory(ctx context.Context, cfg cliConfig, reportID string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.history", map[string]any{"token": cfg.Token, "report_id": reportID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/reports/"+url.PathEscape(reportID)+"/history", nil, out)
}

func doReportsTransition(ctx context.Context, cfg cliConfig, reportID, to, message, internalNotes string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.transition", map[string]any{
			"token":          cfg.Token,
			"report_id":      reportID,
			"to":             to,
			"message":        message,
			"internal_notes": internalNotes,
		}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(reportID)+"/transition", map[string]any{
		"to":             to,
		"message":        message,
		"internal_notes": internalNotes,
	}, out)
}

func doReportsRate(ctx context.Context, cfg cliConfig, reportID string, rating int, feedback string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.rate", map[string]any{"token": cfg.Token, "report_id": reportID, "rating": rating, "feedback": feedback}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(reportID)+"/rate", map[string]any{"rating": rating, "feedback": feedback}, out)
}

func doReportsAssign(ctx context.Context, cfg cliConfig, reportID, department, officerID string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.assign", map[string]any{"token": cfg.Token, "report_id": reportID, "department": department, "officer_id": officerID}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(reportID)+"/assign", map[string]any{"department": department, "officer_id": officerID}, out)
}

func doReportsPriority(ctx context.Context, cfg cliConfig, reportID, priority string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.priority", map[string]any{"token": cfg.Token, "report_id": reportID, "priority": priority}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/reports/"+url.PathEscape(reportID)+"/priority", map[string]any{"priority": priority}, out)
}

func doReportsStats(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "reports.stats", map[string]any{"token": cfg.Token}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/reports/stats", nil, out)
}

func doProfilesList(ctx context.Context, cfg cliConfig, role, q string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "access.profiles.list", map[string]any{"token": cfg.Token, "role": role, "q": q}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	params := url.Values{}
	if role != "" {
		params.Set("role", role)
	}
	if q != "" {
		params.Set("q", q)
	}
	path := "/api/access/profiles"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doRoleSet(ctx context.Context, cfg cliConfig, userID, role, department string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "access.role.set", map[string]any{"token": cfg.Token, "user_id": userID, "role": role, "department": department}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodPost, "/api/access/role", map[string]any{"user_id": userID, "role": role, "department": department}, out)
}

func doAuditLogs(ctx context.Context, cfg cliConfig, limit int, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "audit.logs", map[string]any{"token": cfg.Token, "limit": limit}, out)
	}
	client := newAPIClient(cfg.Server, cfg.Token)
	return client.request(ctx, http.MethodGet, "/api/audit/logs", nil, out)
}
