// Package icebridge talks to the SPI bridge of an iCE40 SoC from a host.
//
// The bridge turns 7- and 8-byte SPI frames into 32-bit Wishbone reads and
// writes, so a host with any SPI master can reach the SoC's CSRs and RAM.
// Client speaks the frame protocol over a tinygo drivers.SPI bus and a
// chip-select pin. Device finds the iCEBreaker's FT2232H and returns a
// Client running over its MPSSE SPI port.
//
// The model of the gateware side lives in the subpackages: transport, bridge,
// wishbone and soc. Package sim connects a Client to that model.
//
// # References:
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_114]: Interfacing FT2232H Hi-Speed Devices To SPI Bus (https://ftdichip.com/wp-content/uploads/2020/08/AN_114_FTDI_Hi_Speed_USB_To_SPI_Example.pdf)
//   - [FTDI-AN_135]: FTDI MPSSE Basics (https://ftdichip.com/wp-content/uploads/2020/08/AN_135_MPSSE_Basics.pdf)
//
// FPGA
//   - [iCEBreaker]: iCEBreaker FPGA (https://github.com/icebreaker-fpga/icebreaker/blob/master/hardware/v1.0e/icebreaker-sch.pdf)
//   - [TN1248]: iCE40 Programming and Configuration (https://www.latticesemi.com/view_document?document_id=46502)
//   - [TN1274]: iCE40 SPI/I2C Hardened IP Usage Guide (https://www.latticesemi.com/view_document?document_id=50117)
//   - [LiteX]: LiteX SoC builder, ctrl and timeout modules (https://github.com/enjoy-digital/litex)
package icebridge
