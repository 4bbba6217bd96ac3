package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type stubJob struct {
	runs int
	err  error
}

func (j *stubJob) Name() string { return "daily-report" }

func (j *stubJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestTriggerCronJobRequiresSecret(t *testing.T) {
	job := &stubJob{}
	handler := TriggerCronJob(job, "s3cret", nil)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/cron/daily-report", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", rec.Code)
	}
	if job.runs != 0 {
		t.Fatalf("job ran without secret")
	}
}

func TestTriggerCronJobRefusesWhenUnconfigured(t *testing.T) {
	job := &stubJob{}
	handler := TriggerCronJob(job, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/cron/daily-report", nil)
	req.Header.Set(cronSecretHeader, "")

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with empty configured secret, got %d", rec.Code)
	}
	if job.runs != 0 {
		t.Fatalf("job ran with no secret configured")
	}
}

func TestTriggerCronJobRunsWithSecret(t *testing.T) {
	job := &stubJob{}
	handler := TriggerCronJob(job, "s3cret", nil)

	req := httptest.NewRequest(http.MethodGet, "/cron/daily-report", nil)
	req.Header.Set(cronSecretHeader, "s3cret")

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if job.runs != 1 {
		t.Fatalf("expected one run, got %d", job.runs)
	}
	if !strings.Contains(rec.Body.String(), "daily-report") {
		t.Fatalf("expected job name in response, got %s", rec.Body.String())
	}
}

func TestTriggerCronJobSurfacesFailure(t *testing.T) {
	job := &stubJob{err: errors.New("feishu webhook unreachable")}
	handler := TriggerCronJob(job, "s3cret", nil)

	req := httptest.NewRequest(http.MethodGet, "/cron/daily-report", nil)
	req.Header.Set(cronSecretHeader, "s3cret")

	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
