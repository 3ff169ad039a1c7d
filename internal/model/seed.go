package model

import (
	"time"

	"gorm.io/datatypes"
)

// SeedIDPrefix marks quests that come from the built-in catalog rather than the store.
const SeedIDPrefix = "seed-"

var seedEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// SeedQuests returns the built-in catalog, one quest per type. Callers get a
// fresh copy every time.
func SeedQuests() []Quest {
	mk := func(n int, t QuestType, title, desc string, opts []string, correct, limit, attempts int, reward string) Quest {
		q := Quest{
			Title:            title,
			Description:      desc,
			Type:             t,
			Options:          EncodeOptions(opts),
			CorrectOption:    correct,
			TimeLimitSeconds: limit,
			AttemptsAllowed:  attempts,
			Status:           QuestStatusActive,
		}
		q.ID = SeedIDPrefix + string(t) + "-1"
		q.CreatedAt = seedEpoch.Add(time.Duration(n) * time.Hour)
		q.UpdatedAt = q.CreatedAt
		if reward != "" {
			q.Reward = datatypes.JSON(reward)
		}
		return q
	}

	return []Quest{
		mk(1, QuestTypeDaily, "复利的力量", "本金1万元，年利率10%按年复利，2年后本息合计是多少？",
			[]string{"1.1万元", "1.2万元", "1.21万元", "1.25万元", "2万元"}, 3, 60, 1, `{"gold":50}`),
		mk(2, QuestTypeWeekly, "分散投资", "降低投资风险最基本的原则是什么？",
			[]string{"全仓单只股票", "分散投资", "频繁短线交易", "加杠杆融资", "只持有现金"}, 2, 90, 2, `{"gold":150}`),
		mk(3, QuestTypeMonthly, "通货膨胀", "物价持续上涨时，现金的实际购买力会怎样？",
			[]string{"上升", "不变", "下降", "翻倍", "无法判断"}, 3, 120, 3, `{"gold":300,"badge":"inflation-fighter"}`),
		mk(4, QuestTypePremium, "认识ETF", "关于ETF，下列说法正确的是？",
			[]string{"不能上市交易", "可以像股票一样在交易所买卖", "保证本金不亏损", "一定有到期日", "只有机构可以购买"}, 2, 60, 1, `{"gold":500,"stockTicket":1}`),
		mk(5, QuestTypeEvent, "存款保险", "我国存款保险的最高偿付限额是多少？",
			[]string{"10万元", "20万元", "50万元", "100万元", "无上限"}, 3, 0, 1, ""),
	}
}
