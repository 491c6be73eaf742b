package n8n

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"agendacerto/internal/model"
	"agendacerto/prometheus"
)

// slugPlaceholder is the token the workflow template carries everywhere the
// empresa slug must be injected: node parameters, node names, webhook paths.
const slugPlaceholder = "__SLUG__"

// ErrProvisionInProgress means another request already claimed provisioning
// for the same empresa and has not finished yet.
var ErrProvisionInProgress = errors.New("n8n: provisioning already in progress")

// Provision outcomes
const (
	OutcomeCreated   = "created"
	OutcomeReused    = "reused"
	OutcomeActivated = "activated"
)

// Store is the persistence surface the provisioner needs. The claim is a
// compare-and-set on the empresa's workflow status so that concurrent
// provisioning calls cannot both reach the create step. from lists the
// statuses the claim may fire from; a claim stuck in "provisioning" past
// the staleness cutoff is always reclaimable.
type Store interface {
	ClaimProvisioning(ctx context.Context, empresaID uint, from ...string) (bool, error)
	SaveWorkflow(ctx context.Context, empresaID uint, workflowID, status string, googleConnected bool) error
}

// Result describes what provisioning did for an empresa
type Result struct {
	WorkflowID string `json:"workflow_id"`
	Outcome    string `json:"outcome"`
}

// Provisioner ensures exactly one active booking workflow exists per empresa
type Provisioner struct {
	client     *Client
	store      Store
	templateID string
	webhookID  string
	log        *zap.Logger
}

// NewProvisioner builds a provisioner over the given n8n client and store.
// webhookID may be empty; when set, newly created workflows are announced
// on that webhook.
func NewProvisioner(client *Client, store Store, templateID, webhookID string, log *zap.Logger) *Provisioner {
	return &Provisioner{
		client:     client,
		store:      store,
		templateID: templateID,
		webhookID:  webhookID,
		log:        log,
	}
}

// WorkflowName is the deterministic name under which an empresa's workflow
// lives on the n8n instance.
func WorkflowName(slug string, empresaID uint) string {
	return fmt.Sprintf("Booking – %s [Empresa %d]", slug, empresaID)
}

// Provision makes sure the empresa has exactly one active workflow:
// a stored workflow id that still exists remotely is reactivated without any
// create call; otherwise the instance is searched by deterministic name, and
// only when that also misses is the template cloned into a new workflow.
// The final workflow id and active status are persisted on the empresa row.
func (p *Provisioner) Provision(ctx context.Context, emp *model.Empresa) (*Result, error) {
	log := p.log.With(
		zap.Uint("empresa_id", emp.ID),
		zap.String("slug", emp.Slug),
	)

	claimFrom := []string{model.WorkflowStatusInactive, model.WorkflowStatusError}

	// Fast path: the stored id still resolves remotely. No claim is taken
	// because nothing is created.
	if emp.N8NWorkflowID != "" {
		wf, err := p.client.GetWorkflow(ctx, emp.N8NWorkflowID)
		if err != nil && !IsNotFound(err) {
			// Transient n8n failure. The stored id may still be valid, so
			// the row is left untouched for the next attempt.
			prometheus.RecordProvision("error")
			return nil, fmt.Errorf("probe workflow %s: %w", emp.N8NWorkflowID, err)
		}
		if err == nil {
			return p.finish(ctx, emp, log, wf, OutcomeReused)
		}
		// The workflow was deleted on n8n while the row still says active;
		// the claim must fire from that status too or the empresa can
		// never be re-provisioned.
		claimFrom = append(claimFrom, model.WorkflowStatusActive)
		log.Warn("stored workflow no longer exists on n8n, re-provisioning",
			zap.String("workflow_id", emp.N8NWorkflowID))
	}

	claimed, err := p.store.ClaimProvisioning(ctx, emp.ID, claimFrom...)
	if err != nil {
		return nil, err
	}
	if !claimed {
		prometheus.RecordProvision("in_progress")
		return nil, ErrProvisionInProgress
	}

	name := WorkflowName(emp.Slug, emp.ID)

	wf, err := p.client.FindWorkflowByName(ctx, name)
	if err != nil {
		return nil, p.fail(ctx, emp, log, err)
	}
	if wf != nil {
		log.Info("found existing workflow by name", zap.String("workflow_id", wf.ID))
		return p.finish(ctx, emp, log, wf, OutcomeActivated)
	}

	created, err := p.cloneTemplate(ctx, name, emp.Slug)
	if err != nil {
		return nil, p.fail(ctx, emp, log, err)
	}
	log.Info("created workflow from template", zap.String("workflow_id", created.ID))
	return p.finish(ctx, emp, log, created, OutcomeCreated)
}

// cloneTemplate fetches the template workflow and builds a tenant copy by
// substituting the slug placeholder across the raw node and connection JSON.
func (p *Provisioner) cloneTemplate(ctx context.Context, name, slug string) (*Workflow, error) {
	tpl, err := p.client.GetWorkflow(ctx, p.templateID)
	if err != nil {
		return nil, fmt.Errorf("fetch template %s: %w", p.templateID, err)
	}

	clone := &Workflow{
		Name:        name,
		Nodes:       bytes.ReplaceAll(tpl.Nodes, []byte(slugPlaceholder), []byte(slug)),
		Connections: bytes.ReplaceAll(tpl.Connections, []byte(slugPlaceholder), []byte(slug)),
	}
	return p.client.CreateWorkflow(ctx, clone)
}

func (p *Provisioner) finish(ctx context.Context, emp *model.Empresa, log *zap.Logger, wf *Workflow, outcome string) (*Result, error) {
	if !wf.Active {
		if err := p.client.ActivateWorkflow(ctx, wf.ID); err != nil {
			return nil, p.fail(ctx, emp, log, err)
		}
	}
	if err := p.store.SaveWorkflow(ctx, emp.ID, wf.ID, model.WorkflowStatusActive, true); err != nil {
		return nil, err
	}
	if outcome == OutcomeCreated && p.webhookID != "" {
		// Announcement only; a webhook failure does not undo provisioning.
		if err := p.client.TriggerWebhook(ctx, p.webhookID, map[string]any{
			"empresa_id": emp.ID,
			"slug":       emp.Slug,
			"workflow":   wf.ID,
		}); err != nil {
			log.Warn("Workflow announcement webhook failed", zap.Error(err))
		}
	}
	prometheus.RecordProvision(outcome)
	log.Info("workflow provisioned",
		zap.String("workflow_id", wf.ID),
		zap.String("outcome", outcome))
	return &Result{WorkflowID: wf.ID, Outcome: outcome}, nil
}

// fail records the error status on the empresa row and counts the failure.
// The workflow id is dropped since it could not be confirmed; the Google
// connection flag is left as it was.
func (p *Provisioner) fail(ctx context.Context, emp *model.Empresa, log *zap.Logger, cause error) error {
	prometheus.RecordProvision("error")
	log.Error("workflow provisioning failed", zap.Error(cause))
	if err := p.store.SaveWorkflow(ctx, emp.ID, "", model.WorkflowStatusError, emp.GoogleConnected); err != nil {
		log.Error("failed to record provisioning error state", zap.Error(err))
	}
	return cause
}
