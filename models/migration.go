package models

import (
	"log"

	"github.com/mmdatafocus/fulfillment_backend/config"
)

func MigrateTable() {
	if err := AutoMigrate(); err != nil {
		log.Fatal(err)
	}
}

func AutoMigrate() error {
	return config.GetDB().AutoMigrate(
		&InventoryRecord{}, &TransferRecord{}, &Receipt{}, &ReceiptItem{},
		&Order{}, &OrderLine{}, &OrderStatusChange{}, &Reservation{},
		&Product{},
		&Tariff{}, &Integration{}, &MarketplaceFee{}, &StorageCharge{},
	)
}
