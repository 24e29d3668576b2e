// Package l1 decodes ATSC 3.0 Layer-1 signaling (L1-Basic followed by
// L1-Detail) from the raw bytes a tuner reports in its l1detail variable.
//
// The bitstream is a linear grammar with branch points: field widths and
// presence are gated by values decoded earlier in the same pass
// (num_subframes, MIMO flags, PLP layer, time-interleaving mode, ...).
// Field order, widths, +1 display biases and enumeration names follow
// A/322 as implemented by the l1dump tooling.
//
// Output is an ordered slice of display lines; leading spaces convey
// nesting (subframe / PLP / nested list) for display purposes only.
package l1

import (
	"errors"
	"fmt"

	"atsc_diag/internal/bitio"
)

// l1BasicBits is the fixed size of the L1-Basic block, CRC included.
const l1BasicBits = 200

// maxInput rejects pathological buffers outright. Real L1 detail blobs are
// a few hundred bytes.
const maxInput = 64 << 10

// ErrTruncated reports that the buffer ran out before the grammar was
// satisfied. The lines returned alongside it are a valid partial decode
// ending in a truncation marker.
var ErrTruncated = errors.New("l1: signaling truncated")

// truncatedMarker terminates a partial decode's output.
const truncatedMarker = "--- Truncated ---"

// basicState carries the L1-Basic fields that gate L1-Detail decoding.
type basicState struct {
	version           uint64
	timeInfoFlag      uint64
	numSubframes      int
	detailSizeBytes   int
	firstSubMimo      bool
	firstSubSBSFirst  bool
	firstSubSBSLast   bool
	firstSubMimoMixed bool
}

type decoder struct {
	r     *bitio.Reader
	lines []string
	trunc bool
}

// bits reads n bits, recording exhaustion instead of failing. After
// exhaustion all reads yield 0 and no further lines are emitted.
func (d *decoder) bits(n int) uint64 {
	if d.trunc {
		return 0
	}
	v, err := d.r.ReadBits(n)
	if err != nil {
		d.trunc = true
		return 0
	}
	return v
}

func (d *decoder) skip(n int) {
	if d.trunc {
		return
	}
	if err := d.r.Skip(n); err != nil {
		d.trunc = true
	}
}

func (d *decoder) addf(format string, args ...any) {
	if d.trunc {
		return
	}
	d.lines = append(d.lines, fmt.Sprintf(format, args...))
}

// Decode parses an L1-Basic + L1-Detail byte sequence into display lines.
// On truncated input it returns the partial lines (ending in a truncation
// marker) together with ErrTruncated; it never panics or reads out of
// bounds.
func Decode(data []byte) ([]string, error) {
	if len(data) > maxInput {
		return nil, fmt.Errorf("l1: input of %d bytes exceeds %d-byte limit", len(data), maxInput)
	}

	d := &decoder{r: bitio.NewReader(data)}
	st := d.decodeBasic()
	d.decodeDetail(st)

	if d.trunc {
		d.lines = append(d.lines, truncatedMarker)
		return d.lines, ErrTruncated
	}
	return d.lines, nil
}

// decodeBasic parses the fixed 200-bit L1-Basic block and captures the
// fields that gate L1-Detail.
func (d *decoder) decodeBasic() basicState {
	var st basicState

	d.addf("--- L1-Basic Signaling ---")

	st.version = d.bits(3)
	d.addf("L1B_version: %d", st.version)
	v := d.bits(1)
	d.addf("L1B_mimo_scattered_pilot_encoding: %s", pick(v == 0, "Walsh-Hadamard", "Null pilots"))
	v = d.bits(1)
	d.addf("L1B_lls_flag: %s", pick(v == 0, "No LLS", "LLS present"))
	st.timeInfoFlag = d.bits(2)
	d.addf("L1B_time_info_flag: %s", name(timeInfoNames, st.timeInfoFlag))
	v = d.bits(1)
	d.addf("L1B_return_channel_flag: %d", v)
	v = d.bits(2)
	d.addf("L1B_papr_reduction: %s", name(paprNames, v))

	if d.bits(1) == 0 {
		d.addf("L1B_frame_length_mode: Time-aligned")
		v = d.bits(10)
		d.addf("  L1B_frame_length: %d", v)
		v = d.bits(13)
		d.addf("  L1B_excess_samples_per_symbol: %d", v)
	} else {
		d.addf("L1B_frame_length_mode: Symbol-aligned")
		v = d.bits(16)
		d.addf("  L1B_time_offset: %d", v)
		v = d.bits(7)
		d.addf("  L1B_additional_samples: %d", v)
	}

	v = d.bits(8)
	d.addf("L1B_num_subframes: %d", v+1)
	st.numSubframes = int(v)
	v = d.bits(3)
	d.addf("L1B_preamble_num_symbols: %d", v+1)
	v = d.bits(3)
	d.addf("L1B_preamble_reduced_carriers: %d", v)
	v = d.bits(2)
	d.addf("L1B_L1_Detail_content_tag: %d", v)
	v = d.bits(13)
	d.addf("L1B_L1_Detail_size_bytes: %d", v)
	st.detailSizeBytes = int(v)
	v = d.bits(3)
	d.addf("L1B_L1_Detail_fec_type: Mode %d", v+1)
	v = d.bits(2)
	d.addf("L1B_L1_additional_parity_mode: K=%d", v)
	v = d.bits(19)
	d.addf("L1B_L1_Detail_total_cells: %d", v)

	v = d.bits(1)
	d.addf("L1B_first_sub_mimo: %s", mimoName(v))
	st.firstSubMimo = v == 1
	v = d.bits(2)
	d.addf("L1B_first_sub_miso: %d", v)
	v = d.bits(2)
	d.addf("L1B_first_sub_fft_size: %s", name(fftSizeNames, v))
	v = d.bits(3)
	d.addf("L1B_first_sub_reduced_carriers: %d", v)
	v = d.bits(4)
	d.addf("L1B_first_sub_guard_interval: %s", guardIntervalName(v))
	v = d.bits(11)
	d.addf("L1B_first_sub_num_ofdm_symbols: %d", v+1)
	v = d.bits(5)
	d.addf("L1B_first_sub_scattered_pilot_pattern: %d", v)
	v = d.bits(3)
	d.addf("L1B_first_sub_scattered_pilot_boost: %d", v)
	v = d.bits(1)
	d.addf("L1B_first_sub_sbs_first: %d", v)
	st.firstSubSBSFirst = v == 1
	v = d.bits(1)
	d.addf("L1B_first_sub_sbs_last: %d", v)
	st.firstSubSBSLast = v == 1

	// The tail of L1-Basic is reserved, except that versions >= 1 carve a
	// mimo_mixed flag out of the first reserved bit.
	if st.version >= 1 {
		v = d.bits(1)
		d.addf("L1B_first_sub_mimo_mixed: %d", v)
		st.firstSubMimoMixed = v == 1
		d.skip(47)
	} else {
		d.skip(48)
	}

	v = d.bits(32)
	d.addf("L1B_crc: 0x%08x", v)

	return st
}

// decodeDetail parses the variable-length L1-Detail block: header, the
// subframe/PLP tree, version-gated tail, padding and CRC, and finally a raw
// trailer for any bits beyond the CRC.
func (d *decoder) decodeDetail(st basicState) {
	d.addf(" ")
	d.addf("--- L1-Detail Signaling ---")

	version := d.bits(4)
	d.addf("L1D_version: %d", version)
	numRF := int(d.bits(3))
	d.addf("L1D_num_rf: %d", numRF)
	for i := 1; i <= numRF; i++ {
		v := d.bits(16)
		d.addf("  L1D_bonded_bsid: 0x%04x", v)
		d.skip(3)
	}

	if st.timeInfoFlag != 0 {
		v := d.bits(32)
		d.addf("L1D_time_sec: %d", v)
		v = d.bits(10)
		d.addf("L1D_time_msec: %d", v)
		if st.timeInfoFlag > 1 {
			v = d.bits(10)
			d.addf("L1D_time_usec: %d", v)
			if st.timeInfoFlag > 2 {
				v = d.bits(10)
				d.addf("L1D_time_nsec: %d", v)
			}
		}
	}

	// numPLP survives the loop: the mimo_mixed pass below revisits the PLP
	// count of the last subframe, as the reference decoder does.
	var numPLP int

	for i := 0; i <= st.numSubframes; i++ {
		d.addf(" ")
		d.addf("Subframe #%d:", i)

		// Subframe 0 reuses the per-symbol parameters already signaled in
		// L1-Basic; later subframes carry their own block inline.
		subMimo := st.firstSubMimo
		sbsFirst, sbsLast := st.firstSubSBSFirst, st.firstSubSBSLast
		if i > 0 {
			v := d.bits(1)
			d.addf("  L1D_mimo: %s", mimoName(v))
			subMimo = v == 1
			v = d.bits(2)
			d.addf("  L1D_miso: %d", v)
			v = d.bits(2)
			d.addf("  L1D_fft_size: %s", name(fftSizeNames, v))
			v = d.bits(3)
			d.addf("  L1D_reduced_carriers: %d", v)
			v = d.bits(4)
			d.addf("  L1D_guard_interval: %s", guardIntervalName(v))
			v = d.bits(11)
			d.addf("  L1D_num_ofdm_symbols: %d", v+1)
			v = d.bits(5)
			d.addf("  L1D_scattered_pilot_pattern: %d", v)
			v = d.bits(3)
			d.addf("  L1D_scattered_pilot_boost: %d", v)
			v = d.bits(1)
			d.addf("  L1D_sbs_first: %d", v)
			sbsFirst = v == 1
			v = d.bits(1)
			d.addf("  L1D_sbs_last: %d", v)
			sbsLast = v == 1
		}

		if st.numSubframes > 0 {
			v := d.bits(1)
			d.addf("  L1D_subframe_multiplex: %d", v)
		}
		v := d.bits(1)
		d.addf("  L1D_frequency_interleaver: %s", pick(v == 0, "Preamble Only", "All Symbols"))
		if sbsFirst || sbsLast {
			v = d.bits(13)
			d.addf("  L1D_sbs_null_cells: %d", v)
		}

		numPLP = int(d.bits(6))
		d.addf("  L1D_num_plp: %d", numPLP+1)
		for j := 0; j <= numPLP; j++ {
			d.decodePLP(j, numRF, subMimo)
		}
	}

	if version >= 1 {
		v := d.bits(16)
		d.addf("L1D_bsid: 0x%04x", v)
	}
	if version >= 2 {
		d.decodeMimoMixed(st, numPLP)
	}

	// Consume padding up to the CRC position implied by the signaled detail
	// size. The reader is l1BasicBits into the stream when detail starts.
	pad := (st.detailSizeBytes*8 - 32) - (d.r.Offset() - l1BasicBits)
	if !d.trunc && pad > 0 {
		d.skip(pad)
	}
	v := d.bits(32)
	d.addf("L1D_crc: 0x%08x", v)

	d.rawTrailer()
}

// decodePLP parses one PLP record within a subframe.
func (d *decoder) decodePLP(idx, numRF int, subMimo bool) {
	d.addf("    PLP #%d:", idx)

	v := d.bits(6)
	d.addf("      L1D_plp_id: %d", v)
	v = d.bits(1)
	d.addf("      L1D_plp_lls_flag: %d", v)
	layer := d.bits(2)
	d.addf("      L1D_plp_layer: %s", layerName(layer))
	v = d.bits(24)
	d.addf("      L1D_plp_start: %d", v)
	v = d.bits(24)
	d.addf("      L1D_plp_size: %d", v)
	v = d.bits(2)
	d.addf("      L1D_plp_scrambler_type: %s", scramblerName(v))

	fecType := d.bits(4)
	d.addf("      L1D_plp_fec_type: %s", name(fecTypeNames, fecType))

	// Mod/cod are only signaled for the non-reserved FEC types.
	var plpMod uint64
	if fecType <= 5 {
		plpMod = d.bits(4)
		d.addf("      L1D_plp_mod: %s", name(modNames, plpMod))
		v = d.bits(4)
		d.addf("      L1D_plp_cod: %s", name(codNames, v))
	}

	tiMode := d.bits(2)
	d.addf("      L1D_plp_TI_mode: %s", name(tiModeNames, tiMode))
	switch tiMode {
	case 0:
		v = d.bits(15)
		d.addf("      L1D_plp_fec_block_start: %d", v)
	case 1:
		v = d.bits(22)
		d.addf("      L1D_plp_CTI_fec_block_start: %d", v)
	}

	if numRF > 0 {
		bonded := int(d.bits(3))
		d.addf("      L1D_plp_num_channel_bonded: %d", bonded)
		if bonded > 0 {
			v = d.bits(2)
			d.addf("      L1D_plp_channel_bonding_format: %d", v)
			for k := 0; k < bonded; k++ {
				v = d.bits(3)
				d.addf("        L1D_plp_bonded_rf_id: %d", v)
			}
		}
	}

	if subMimo {
		v = d.bits(1)
		d.addf("      L1D_plp_mimo_stream_combining: %d", v)
		v = d.bits(1)
		d.addf("      L1D_plp_mimo_IQ_interleaving: %d", v)
		v = d.bits(1)
		d.addf("      L1D_plp_mimo_PH: %d", v)
	}

	if layer != 0 {
		// Enhanced layers carry only their LDM injection level.
		v = d.bits(5)
		d.addf("      L1D_plp_ldm_injection_level: %d", v)
		return
	}

	// Core layer: dispersal, then the time-interleaver parameter group.
	if d.bits(1) == 0 {
		d.addf("      L1D_plp_type: non-dispersed")
	} else {
		d.addf("      L1D_plp_type: dispersed")
		v = d.bits(14)
		d.addf("      L1D_plp_num_subslices: %d", v+1)
		v = d.bits(24)
		d.addf("      L1D_plp_subslice_interval: %d", v)
	}

	if (tiMode == 1 || tiMode == 2) && plpMod == 0 {
		v = d.bits(1)
		d.addf("      L1D_plp_TI_extended_interleaving: %d", v)
	}

	switch tiMode {
	case 1:
		v = d.bits(3)
		d.addf("      L1D_plp_CTI_depth: %d", v)
		v = d.bits(11)
		d.addf("      L1D_plp_CTI_start_row: %d", v)
	case 2:
		interSubframe := d.bits(1)
		d.addf("      L1D_plp_HTI_inter_subframe: %d", interSubframe)
		tiBlocks := int(d.bits(4))
		d.addf("      L1D_plp_HTI_num_ti_blocks: %d", tiBlocks+1)
		v = d.bits(12)
		d.addf("      L1D_plp_HTI_num_fec_blocks_max: %d", v+1)
		if interSubframe == 0 {
			v = d.bits(12)
			d.addf("      L1D_plp_HTI_num_fec_blocks: %d", v+1)
		} else {
			for k := 0; k <= tiBlocks; k++ {
				v = d.bits(12)
				d.addf("        L1D_plp_HTI_num_fec_blocks: %d", v+1)
			}
		}
		v = d.bits(1)
		d.addf("      L1D_plp_HTI_cell_interleaver: %d", v)
	}
}

// decodeMimoMixed parses the L1D v2+ second pass over subframes carrying
// per-PLP MIMO detail flags.
func (d *decoder) decodeMimoMixed(st basicState, numPLP int) {
	for i := 0; i <= st.numSubframes; i++ {
		mixed := st.firstSubMimoMixed
		if i > 0 {
			v := d.bits(1)
			d.addf("  Subframe #%d L1D_mimo_mixed: %d", i, v)
			mixed = v == 1
		}
		if !mixed {
			continue
		}
		for j := 0; j <= numPLP; j++ {
			v := d.bits(1)
			d.addf("    PLP #%d L1D_plp_mimo: %d", j, v)
			if v == 1 {
				v = d.bits(1)
				d.addf("      L1D_plp_mimo_stream_combining: %d", v)
				v = d.bits(1)
				d.addf("      L1D_plp_mimo_IQ_interleaving: %d", v)
				v = d.bits(1)
				d.addf("      L1D_plp_mimo_PH: %d", v)
			}
		}
	}
}

// rawTrailer emits any bits left beyond the L1D CRC as hex, 32 bits per
// line, for diagnostic visibility. Such bits indicate a buffer/size
// mismatch and are not interpreted.
func (d *decoder) rawTrailer() {
	if d.trunc || d.r.Remaining() == 0 {
		return
	}
	d.addf(" ")
	d.addf("--- Undecoded Trailer ---")
	for d.r.Remaining() >= 32 {
		v := d.bits(32)
		d.addf("Raw: 0x%08x", v)
	}
	if n := d.r.Remaining(); n > 0 {
		v := d.bits(n)
		d.addf("Raw: 0x%x (%d bits)", v, n)
	}
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
