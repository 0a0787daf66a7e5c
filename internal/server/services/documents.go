package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakeadmin/internal/common"
	"github.com/dmitrijs2005/lakeadmin/internal/server/events"
	"github.com/dmitrijs2005/lakeadmin/internal/server/models"
)

// CreateDA stores a data-access configuration under its id. The document is
// opaque apart from the id.
func (c *Coordinator) CreateDA(ctx context.Context, doc models.Document) (models.Document, error) {
	started := time.Now()
	err := c.putDocument(ctx, common.CollectionConfiguration, doc)
	c.observe("create_da", started, nil, err)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (c *Coordinator) GetDA(ctx context.Context, id string) (models.Document, error) {
	return c.getDocument(ctx, common.CollectionConfiguration, id)
}

// ListDAs returns the ids of all data-access configurations.
func (c *Coordinator) ListDAs(ctx context.Context) ([]string, error) {
	return c.listDocuments(ctx, common.CollectionConfiguration)
}

// CreateArchiveJob stores the job, defaulting a missing or null bucket to
// "*", and then publishes a create_archive_job event carrying the bucket as
// given. A publish failure is returned as a Warning; the stored job stays.
func (c *Coordinator) CreateArchiveJob(ctx context.Context, job models.Document) (stored models.Document, warns Warnings, err error) {
	started := time.Now()
	defer func() { c.observe("create_archive_job", started, warns, err) }()

	job = job.Clone()
	bucket := job["bucket"]
	if bucket == nil {
		bucket = models.DefaultArchiveBucket
		job["bucket"] = bucket
	}

	if err := c.putDocument(ctx, common.CollectionArchiveJobs, job); err != nil {
		return nil, nil, err
	}

	ev := events.New(c.opts.Sender, models.EventCreateArchiveJob, map[string]any{
		"bucket": bucket,
		"job_id": job.ID(),
	})
	err = c.call(ctx, func(ctx context.Context) error {
		return c.publisher.Publish(ctx, c.opts.EventTopic, ev)
	})
	if err != nil {
		c.log.Warn(ctx, "event publish failed",
			"type", ev.Type, "job_id", job.ID(), "topic", c.opts.EventTopic, "system", "bus", "error", err)
		warns.add(models.EventCreateArchiveJob, StepPublishEvent, err)
		c.recordWarnings(warns)
	}

	return job, warns, nil
}

func (c *Coordinator) GetArchiveJob(ctx context.Context, id string) (models.Document, error) {
	return c.getDocument(ctx, common.CollectionArchiveJobs, id)
}

// ListArchiveJobs returns the ids of all archive jobs.
func (c *Coordinator) ListArchiveJobs(ctx context.Context) ([]string, error) {
	return c.listDocuments(ctx, common.CollectionArchiveJobs)
}

func (c *Coordinator) putDocument(ctx context.Context, collection string, doc models.Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	if c.opts.DocumentPolicy == PolicyCreateOnly {
		err := c.call(ctx, func(ctx context.Context) error {
			_, err := c.store.Get(ctx, collection, id)
			return err
		})
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s/%s", common.ErrorConflict, collection, id)
		case !errors.Is(err, common.ErrorNotFound):
			c.log.Error(ctx, "existence check failed", "collection", collection, "id", id, "system", "store", "error", err)
			return err
		}
	}

	err = c.call(ctx, func(ctx context.Context) error {
		return c.store.Put(ctx, collection, id, body)
	})
	if err != nil {
		c.log.Error(ctx, "document write failed", "collection", collection, "id", id, "system", "store", "error", err)
		return err
	}
	c.log.Debug(ctx, "document stored", "collection", collection, "id", id)
	return nil
}

func (c *Coordinator) getDocument(ctx context.Context, collection, id string) (models.Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", common.ErrorValidation)
	}
	var body []byte
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		body, err = c.store.Get(ctx, collection, id)
		return err
	})
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			c.log.Error(ctx, "document read failed", "collection", collection, "id", id, "system", "store", "error", err)
		}
		return nil, err
	}
	doc, err := models.ParseDocument(body)
	if err != nil {
		c.log.Error(ctx, "stored document is corrupt", "collection", collection, "id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrorBackend, err)
	}
	return doc, nil
}

func (c *Coordinator) listDocuments(ctx context.Context, collection string) ([]string, error) {
	var ids []string
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		ids, err = c.store.List(ctx, collection)
		return err
	})
	if err != nil {
		c.log.Error(ctx, "document list failed", "collection", collection, "system", "store", "error", err)
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
