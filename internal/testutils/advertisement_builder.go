package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"
	"github.com/srg/btrelay/internal/testutils/mocks"
	"github.com/srg/btrelay/pkg/adv"
)

// TxPowerUnavailable is what go-ble reports when no TX power element is present.
const TxPowerUnavailable = 127

// AdvertisementBuilder describes an advertisement once and renders it either
// as a mocked ble.Advertisement or as raw AD bytes.
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []ble.UUID
	manufData   []byte
	serviceData []ble.ServiceData
	txPower     *int
	connectable bool
}

// NewAdvertisementBuilder starts with a connectable advertisement at -50 dBm.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{rssi: -50, connectable: true}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices adds service UUIDs in any form ble.Parse accepts.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	for _, u := range uuids {
		b.services = append(b.services, ble.MustParse(u))
	}
	return b
}

// WithManufacturerData sets the vendor-specific payload, company ID included.
func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	return b
}

func (b *AdvertisementBuilder) WithServiceData(uuid string, data []byte) *AdvertisementBuilder {
	b.serviceData = append(b.serviceData, ble.ServiceData{UUID: ble.MustParse(uuid), Data: data})
	return b
}

// WithBTHome adds a BTHome service data element.
func (b *AdvertisementBuilder) WithBTHome(payload ...byte) *AdvertisementBuilder {
	return b.WithServiceData("fcd2", payload)
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.txPower = &power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// FromJSON fills the builder from JSON. Binary fields are hex strings:
//
//	{"address": "a4:c1:38:00:00:01", "rssi": -60, "serviceData": {"fcd2": "40 01 5a"}}
//
// Panics on invalid input as it is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name             *string           `json:"name"`
		Address          *string           `json:"address"`
		RSSI             *int              `json:"rssi"`
		Services         []string          `json:"services"`
		ManufacturerData string            `json:"manufacturerData"`
		ServiceData      map[string]string `json:"serviceData"`
		TxPower          *int              `json:"txPower"`
		Connectable      *bool             `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if data.Name != nil {
		b.WithName(*data.Name)
	}
	if data.Address != nil {
		b.WithAddress(*data.Address)
	}
	if data.RSSI != nil {
		b.WithRSSI(*data.RSSI)
	}
	b.WithServices(data.Services...)
	if data.ManufacturerData != "" {
		b.WithManufacturerData(MustHex(data.ManufacturerData))
	}
	for uuid, hex := range data.ServiceData {
		b.WithServiceData(uuid, MustHex(hex))
	}
	if data.TxPower != nil {
		b.WithTxPower(*data.TxPower)
	}
	if data.Connectable != nil {
		b.WithConnectable(*data.Connectable)
	}
	return b
}

// Build returns a mock whose getters all answer from the builder.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	m := &mocks.MockAdvertisement{}

	addr := &mocks.MockAddr{}
	addr.On("String").Return(b.address).Maybe()

	txPower := TxPowerUnavailable
	if b.txPower != nil {
		txPower = *b.txPower
	}

	m.On("Addr").Return(addr).Maybe()
	m.On("LocalName").Return(b.name).Maybe()
	m.On("RSSI").Return(b.rssi).Maybe()
	m.On("ManufacturerData").Return(b.manufData).Maybe()
	m.On("ServiceData").Return(b.serviceData).Maybe()
	m.On("Services").Return(b.services).Maybe()
	m.On("OverflowService").Return([]ble.UUID(nil)).Maybe()
	m.On("SolicitedService").Return([]ble.UUID(nil)).Maybe()
	m.On("Connectable").Return(b.connectable).Maybe()
	m.On("TxPowerLevel").Return(txPower).Maybe()
	return m
}

// AD renders the advertisement as raw AD bytes without a length limit.
func (b *AdvertisementBuilder) AD() []byte {
	ab := adv.NewBuilder(0)
	ab.AddFlags(adv.FlagDiscoveryGeneral | adv.FlagBREDRNotSupported)
	if b.name != "" {
		ab.AddName(b.name, true)
	}
	if b.txPower != nil {
		ab.AddTxPower(int8(*b.txPower))
	}
	if len(b.manufData) > 0 {
		ab.AddVendorSpecific(b.manufData)
	}
	for _, sd := range b.serviceData {
		ab.AddServiceData(sd.UUID, sd.Data)
	}
	for _, u := range b.services {
		ab.AddService(u)
	}
	return ab.Build()
}

// Address returns the configured address.
func (b *AdvertisementBuilder) Address() string {
	return b.address
}

// RSSI returns the configured signal strength.
func (b *AdvertisementBuilder) RSSI() int {
	return b.rssi
}
