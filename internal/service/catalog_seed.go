package service

import (
	"github.com/shopspring/decimal"

	"github.com/egannguyen/go-kafka-ecommerce/storefront/internal/entity"
)

func defaultCatalog() []entity.Item {
	price := decimal.RequireFromString
	return []entity.Item{
		{ID: "game-001", Title: "The Legend of Zelda: Tears of the Kingdom", Description: "Open-world adventure across the skies and depths of Hyrule.", Category: "Adventure", Platform: "Nintendo Switch", Developer: "Nintendo", Price: price("69.99"), Stock: 40, Active: true},
		{ID: "game-002", Title: "Elden Ring", Description: "Action RPG set in the Lands Between.", Category: "RPG", Platform: "PlayStation 5", Developer: "FromSoftware", Price: price("59.99"), Stock: 25, Active: true},
		{ID: "game-003", Title: "Baldur's Gate 3", Description: "Party-based RPG in the Forgotten Realms.", Category: "RPG", Platform: "PC", Developer: "Larian Studios", Price: price("59.99"), Stock: 30, Active: true},
		{ID: "game-004", Title: "Forza Horizon 5", Description: "Open-world racing across Mexico.", Category: "Racing", Platform: "Xbox Series X", Developer: "Playground Games", Price: price("49.99"), Stock: 15, Active: true},
		{ID: "game-005", Title: "Hades", Description: "Roguelike dungeon crawler out of the Underworld.", Category: "Action", Platform: "PC", Developer: "Supergiant Games", Price: price("24.99"), Stock: 60, Active: true},
		{ID: "game-006", Title: "Stardew Valley", Description: "Farming and life simulation.", Category: "Simulation", Platform: "Nintendo Switch", Developer: "ConcernedApe", Price: price("14.99"), Stock: 100, Active: true},
		{ID: "game-007", Title: "Final Fantasy XVI", Description: "Action RPG in the realm of Valisthea.", Category: "RPG", Platform: "PlayStation 5", Developer: "Square Enix", Price: price("69.99"), Stock: 2, Active: true},
	}
}
