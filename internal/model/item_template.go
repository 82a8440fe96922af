package model

// ItemTemplate — шаблон предмета, выдаваемого или забираемого квестами.
type ItemTemplate struct {
	ItemID    int32  // Template ID (unique)
	Name      string // Item name (e.g., "Queen Vuuna's Head")
	Type      ItemType
	Stackable bool
	// Placeholder marks a template created at load time because the real one was missing.
	Placeholder bool
}

// ItemType определяет категорию предмета.
type ItemType int32

const (
	ItemTypeEtcItem ItemType = iota
	ItemTypeQuestItem
	ItemTypeArmor
	ItemTypeWeapon
	ItemTypeJewel
)

// String returns human-readable item type name.
func (it ItemType) String() string {
	switch it {
	case ItemTypeQuestItem:
		return "QuestItem"
	case ItemTypeArmor:
		return "Armor"
	case ItemTypeWeapon:
		return "Weapon"
	case ItemTypeJewel:
		return "Jewel"
	case ItemTypeEtcItem:
		return "EtcItem"
	default:
		return "Unknown"
	}
}
