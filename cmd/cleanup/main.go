package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/repo_audit_server/config"
	"github.com/qs3c/repo_audit_server/internal/database"
	"github.com/qs3c/repo_audit_server/internal/repository"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually modify anything")
	staleHours   = flag.Int("stale-hours", 2, "Hours after which a non-terminal job counts as stale")
	reportExpire = flag.Int("report-expire", 30, "Days to keep local report files")
	failStale    = flag.Bool("fail-stale", true, "Mark stale jobs as failed")
	cleanReports = flag.Bool("clean-reports", true, "Clean expired local report files")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	jobRepo := repository.NewJobRepository(db)

	failedJobs := 0
	deletedFiles := 0
	deletedSize := int64(0)

	// 1. 僵尸任务转入失败终态（worker 崩溃、队列丢消息等场景的残留）
	if *failStale {
		log.Printf("\n⏱  Sweeping jobs stuck in pending/processing for over %d hours...", *staleHours)
		failedJobs = sweepStaleJobs(jobRepo, *staleHours, *dryRun)
	}

	// 2. 清理过期的本地报告文件
	if *cleanReports {
		log.Printf("\n📦 Cleaning local reports older than %d days...", *reportExpire)
		deletedSize, deletedFiles = cleanExpiredReports(cfg.Analysis.ReportLocalDir, *reportExpire, *dryRun)
	}

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Stale jobs failed: %d", failedJobs)
	log.Printf("Deleted reports: %d", deletedFiles)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - Nothing was actually changed")
		log.Println("   Run with -dry-run=false to apply changes")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// sweepStaleJobs 把超时未完成的任务落成失败，使状态查询不再显示假进度
func sweepStaleJobs(jobRepo *repository.JobRepository, staleHours int, dryRun bool) int {
	cutoff := time.Now().Add(-time.Duration(staleHours) * time.Hour)

	jobs, err := jobRepo.ListStale(cutoff)
	if err != nil {
		log.Printf("Failed to list stale jobs: %v", err)
		return 0
	}

	count := 0
	for _, job := range jobs {
		log.Printf("  Stale job %d (%s, status=%s, created=%s)",
			job.ID, job.RepoFullName, job.Status, job.CreatedAt.Format(time.RFC3339))
		if dryRun {
			count++
			continue
		}
		if err := jobRepo.Fail(job.ID, "任务执行超时，已被清理任务终止"); err != nil {
			log.Printf("  Failed to mark job %d: %v", job.ID, err)
			continue
		}
		count++
	}

	return count
}

// cleanExpiredReports 删除过期的本地报告文件
func cleanExpiredReports(reportDir string, expireDays int, dryRun bool) (int64, int) {
	expireTime := time.Now().AddDate(0, 0, -expireDays)
	var totalSize int64
	var count int

	entries, err := os.ReadDir(reportDir)
	if err != nil {
		log.Printf("Failed to read report dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(expireTime) {
			continue
		}

		path := filepath.Join(reportDir, entry.Name())
		log.Printf("  Expired report: %s (%s, %s)",
			path, formatSize(info.Size()), info.ModTime().Format("2006-01-02"))

		if !dryRun {
			if err := os.Remove(path); err != nil {
				log.Printf("  Failed to delete %s: %v", path, err)
				continue
			}
		}
		totalSize += info.Size()
		count++
	}

	return totalSize, count
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGT"[exp])
}
