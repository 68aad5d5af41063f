package migration

var ImportLegacyLedger = importLegacyLedger
