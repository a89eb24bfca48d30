package service

import "lever_bot/internal/models"

// NeedToTrigger — решение "сработало ли условие" по текущей цене.
//
//	immediate  — всегда
//	decreasing — long: price < trigger, short: price > trigger
//	increasing — long: price > trigger, short: price < trigger
//
// Равенство цены триггеру не срабатывает никогда.
func NeedToTrigger(t models.PositionType, cond models.ConditionType, price, triggerPrice float64) bool {
	switch cond {
	case models.ConditionImmediate:
		return true
	case models.ConditionDecreasing:
		if t == models.PositionShort {
			return price > triggerPrice
		}
		return price < triggerPrice
	case models.ConditionIncreasing:
		if t == models.PositionShort {
			return price < triggerPrice
		}
		return price > triggerPrice
	}
	return false
}

// TrailingActivation — цена, после которой стоп начинает подтягиваться:
// маржинальная дистанция (в % от входа) в профитную сторону.
func TrailingActivation(entry, distPct float64, t models.PositionType) float64 {
	if t == models.PositionShort {
		return entry * (1 - distPct/100)
	}
	return entry * (1 + distPct/100)
}

// TrailingCandidate — кандидат нового стопа: та же дистанция от текущей цены.
func TrailingCandidate(price, distPct float64, t models.PositionType) float64 {
	if t == models.PositionShort {
		return price * (1 + distPct/100)
	}
	return price * (1 - distPct/100)
}

// RatchetStopLoss двигает стоп только в защитную сторону:
// max(candidate, current) для long, min — для short. Возвращает новый
// триггер и факт сдвига; без активации или улучшения — ничего не меняет.
func RatchetStopLoss(o *models.Order, p *models.Position, b *models.Bot, price float64) (float64, bool) {
	if !b.TrailingEnabled() {
		return o.TriggerPrice, false
	}

	activation := TrailingActivation(p.EntryPrice, b.StopLossMarginDistance, p.Type)
	if p.Type == models.PositionShort {
		if price > activation {
			return o.TriggerPrice, false
		}
	} else if price < activation {
		return o.TriggerPrice, false
	}

	candidate := TrailingCandidate(price, b.StopLossMarginDistance, p.Type)
	if p.Type == models.PositionShort {
		if candidate < o.TriggerPrice {
			return candidate, true
		}
	} else if candidate > o.TriggerPrice {
		return candidate, true
	}
	return o.TriggerPrice, false
}
