// 手动派发未发放的任务奖励
//
// 该功能已集成到主应用的后台任务中（按 quest.dispatch_interval_seconds 周期执行）。
// 此脚本仅用于手动补发，例如 Redis 长时间不可用恢复之后。
//
// 用法: go run scripts/dispatch_rewards.go

package main

import (
	"context"
	"log"

	"quest_engine_backend/internal/config"
	"quest_engine_backend/internal/repository"
	"quest_engine_backend/internal/service"
	"quest_engine_backend/pkg/database"
	"quest_engine_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if !cfg.Database.Configured() || !cfg.Redis.Enabled {
		log.Fatal("需要同时配置数据库和 Redis")
	}

	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis连接失败: %v", err)
	}
	defer rdb.Close()

	ledger := repository.NewRewardLedgerRepository(db)
	ctx := context.Background()
	pending, err := ledger.CountUnissued(ctx)
	if err != nil {
		log.Fatalf("统计待发放奖励失败: %v", err)
	}
	log.Printf("待发放奖励: %d 条", pending)

	dispatcher := service.NewRewardDispatcher(ledger, repository.NewRewardStream(rdb, cfg.Redis.RewardStream), cfg.Quest.DispatchBatchSize)
	total := 0
	for {
		n, err := dispatcher.DispatchOnce(ctx)
		total += n
		if err != nil {
			log.Fatalf("派发中断（已派发 %d 条）: %v", total, err)
		}
		if n < dispatcher.BatchSize {
			break
		}
	}
	log.Printf("完成！共派发 %d 条", total)
}
