package app

import "github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"

// ScheduleQuery holds the parameters accepted by the schedule endpoints
type ScheduleQuery struct {
	PostalCode    string `form:"postalcode"`
	StreetName    string `form:"streetname"`
	HouseNumber   string `form:"housenumber"`
	Notifications string `form:"notifications"`
	Timezone      string `form:"timezone"`
	Format        string `form:"format"`
	GetPickups    string `form:"getpickups"`
}

// PickupInfo describes the address a schedule was retrieved for
type PickupInfo struct {
	PostalCode   string
	StreetName   string
	HouseNumber  string
	Municipality string
	FromDate     string
	UntilDate    string
}

// PageData is passed to the index template
type PageData struct {
	Query   ScheduleQuery
	Info    *PickupInfo
	Entries []recycleapp.ScheduleEntry
	Error   string

	ICSURL                  string
	ICSURLWithNotifications string
}
