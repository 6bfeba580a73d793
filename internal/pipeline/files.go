package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/johnwards/orgseed/internal/model"
	"github.com/johnwards/orgseed/internal/orgconn"
	"github.com/johnwards/orgseed/internal/registry"
	"github.com/johnwards/orgseed/internal/soql"
	"github.com/johnwards/orgseed/internal/writer"
)

// contentLinkObject and contentVersionObject are the platform's binary-file
// join/version objects, per spec.md §4.6 Stage 6.
const (
	contentLinkObject    = "ContentDocumentLink"
	contentVersionObject = "ContentVersion"
)

// runFileTier implements spec.md §4.6 Stage 6: the binary-file transfer
// sub-pipeline. It attaches to every source id currently in the Registry,
// same as the activity stage.
func (d *Driver) runFileTier(ctx context.Context, plan *model.SeedPlan) error {
	d.Logger.StartSpinner("seeding files")

	allIDs := d.reg.AllSourceIDs()
	if len(allIDs) == 0 {
		d.Logger.StopSpinner("files: no prior-tier records to attach to")
		return nil
	}
	d.results.Files = &model.FileTransferSummary{}
	summary := d.results.Files

	linkRows, err := soql.QueryAllChunked(ctx, d.Source, allIDs, soql.ChunkSize, func(chunk []string) string {
		projection := soql.BuildProjection([]string{"ContentDocumentId", "LinkedEntityId"})
		return soql.BuildQuery(projection, contentLinkObject, "LinkedEntityId IN "+soql.InClause(chunk), model.AllRecords)
	})
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("query %s: %v", contentLinkObject, err))
		return fmt.Errorf("query %s: %w", contentLinkObject, err)
	}
	links := toRecords(linkRows)
	summary.LinksQueried = len(links)

	documentIDs := distinctNonNullStrings(links, "ContentDocumentId")
	if len(documentIDs) == 0 {
		d.Logger.StopSpinner("files: no content links found")
		return nil
	}

	versionRows, err := soql.QueryAllChunked(ctx, d.Source, documentIDs, soql.ChunkSize, func(chunk []string) string {
		projection := soql.BuildProjection([]string{"Id", "ContentDocumentId", "Title", "PathOnClient", "FileExtension", "ContentSize", "Description"})
		where := "ContentDocumentId IN " + soql.InClause(chunk) + " AND IsLatestVersion = true"
		return soql.BuildQuery(projection, contentVersionObject, where, model.AllRecords)
	})
	if err != nil {
		d.Logger.StopSpinnerFail(fmt.Sprintf("query %s: %v", contentVersionObject, err))
		return fmt.Errorf("query %s: %w", contentVersionObject, err)
	}
	versions := toRecords(versionRows)
	summary.VersionsQueried = len(versions)

	if plan.DryRun {
		for _, v := range versions {
			if size, ok := v["ContentSize"].(int64); ok {
				summary.TotalBytes += size
			} else if size, ok := v["ContentSize"].(int); ok {
				summary.TotalBytes += int64(size)
			}
		}
		summary.VersionsCopied = len(versions)
		d.Logger.StopSpinner(fmt.Sprintf("files: dry-run, %d versions, %d bytes", summary.VersionsCopied, summary.TotalBytes))
		return nil
	}

	// source document id -> target document id, built as each version is copied.
	documentMap := make(map[string]string)
	for _, v := range versions {
		sourceDocID, _ := v.StringValue("ContentDocumentId")
		sourceVersionID, _ := v.StringValue("Id")

		targetDocID, err := d.copyVersion(ctx, v)
		if err != nil {
			summary.VersionsFailed++
			d.results.LogError(contentVersionObject, sourceVersionID, "upload", err.Error())
			continue
		}
		summary.VersionsCopied++
		summary.TotalBytes += versionByteSize(v)
		documentMap[sourceDocID] = targetDocID
	}

	var linkRecords []model.Record
	var linkSourceIDs []string
	for _, link := range links {
		sourceEntityID, _ := link.StringValue("LinkedEntityId")
		sourceDocID, _ := link.StringValue("ContentDocumentId")

		targetDocID, haveDoc := documentMap[sourceDocID]
		targetEntityID, haveEntity := d.reg.Lookup(sourceEntityID)
		if !haveDoc || !haveEntity {
			continue
		}
		linkRecords = append(linkRecords, model.Record{
			"ContentDocumentId": targetDocID,
			"LinkedEntityId":    targetEntityID,
			"ShareType":         "V",
			"Visibility":        "AllUsers",
		})
		linkSourceIDs = append(linkSourceIDs, sourceDocID+":"+sourceEntityID)
	}

	if len(linkRecords) > 0 {
		// Content links are a leaf tier nothing downstream remaps against, so
		// their write outcomes are tracked in a throwaway registry rather than
		// the run's shared one.
		out := writer.BatchInsert(ctx, d.Target, contentLinkObject, linkRecords, linkSourceIDs, registry.New(), d.results, plan.DryRun)
		summary.LinksCreated += out.Inserted
		summary.LinksFailed += out.Failed
	}

	d.Logger.StopSpinner(fmt.Sprintf("files: %d versions copied, %d links created, %d bytes", summary.VersionsCopied, summary.LinksCreated, summary.TotalBytes))
	slog.Info("file tier complete", "versionsCopied", summary.VersionsCopied, "versionsFailed", summary.VersionsFailed, "linksCreated", summary.LinksCreated, "totalBytes", summary.TotalBytes)
	return nil
}

// copyVersion downloads one source ContentVersion's binary data,
// base64-encodes it, creates the target version record, and resolves the
// target-side containing document id by querying the newly created version
// back.
func (d *Driver) copyVersion(ctx context.Context, v model.Record) (targetDocumentID string, err error) {
	sourceVersionID, _ := v.StringValue("Id")
	url := fmt.Sprintf("%s/services/data/%s/sobjects/ContentVersion/%s/VersionData", d.Source.InstanceURL(), d.Source.APIVersion(), sourceVersionID)

	content, err := d.Source.DownloadFile(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download version data: %w", err)
	}

	create := model.Record{
		"PathOnClient": v["PathOnClient"],
		"VersionData":  base64.StdEncoding.EncodeToString(content),
	}
	if title, ok := v["Title"]; ok {
		create["Title"] = title
	}
	if desc, ok := v["Description"]; ok {
		create["Description"] = desc
	}

	outcomes, err := d.Target.Create(ctx, contentVersionObject, []map[string]any{create})
	if err != nil {
		return "", fmt.Errorf("create target version: %w", err)
	}
	if len(outcomes) == 0 || !outcomes[0].Success {
		return "", fmt.Errorf("create target version failed: %s", versionCreateError(outcomes))
	}
	targetVersionID := outcomes[0].ID

	projection := soql.BuildProjection([]string{"ContentDocumentId"})
	query := soql.BuildQuery(projection, contentVersionObject, "Id = '"+soql.EscapeLiteral(targetVersionID)+"'", model.AllRecords)
	rows, err := soql.QueryAll(ctx, d.Target, query)
	if err != nil {
		return "", fmt.Errorf("resolve target ContentDocumentId: %w", err)
	}
	if len(rows) != 1 {
		return "", fmt.Errorf("expected exactly one target version row for id %s, found %d", targetVersionID, len(rows))
	}
	return fmt.Sprint(rows[0]["ContentDocumentId"]), nil
}

func versionCreateError(outcomes []orgconn.WriteOutcome) string {
	if len(outcomes) == 0 {
		return "Unknown error"
	}
	return writer.FormatError(outcomes[0].Errors)
}

func versionByteSize(v model.Record) int64 {
	switch n := v["ContentSize"].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
