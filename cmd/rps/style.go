package main

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/application"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/domain/rps"
	"github.com/azuma-ya/zk-p2p-rock-paper-scissors/ledger"
)

// printable pairs a box with its content so it can be rendered or embedded
// in a panel later.
type printable struct {
	box  *pterm.BoxPrinter
	text string
}

func (p *printable) Render() {
	p.box.Println(p.text)
}

func (p *printable) String() string {
	return p.box.Sprint(p.text)
}

func signalPanel(e application.Event) *printable {
	pbox := pterm.DefaultBox.WithHorizontalPadding(2).WithTopPadding(1).WithBottomPadding(1)
	title := pterm.LightYellow("|SIGNAL " + strings.ToUpper(e.Message) + " for " + short(e.Peer) + "|")
	b := pbox.WithTitle(title).WithTitleTopCenter()
	return &printable{box: b, text: "Send this to the other player:\n\n" + e.Blob}
}

func resultPanel(r rps.Result) *printable {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var outcome string
	switch r.Outcome {
	case rps.Win:
		outcome = pterm.LightGreen("You WIN!")
	case rps.Lose:
		outcome = pterm.LightRed("You LOSE!")
	default:
		outcome = pterm.LightYellow("Draw")
	}
	text := pterm.Sprintfln("%s\nYou: %s\nOpponent %s: %s", outcome, r.Self, short(r.Opponent), r.Other)
	return &printable{box: pbox.WithTitle(pterm.LightGreen("|ROUND " + pterm.Sprint(r.Round) + "|")).WithTitleTopCenter(), text: text}
}

func printState(v application.View, last *rps.Result) {
	var peers []pterm.Panel
	for _, p := range v.Peers {
		peers = append(peers, pterm.Panel{Data: printPeerInfo(p)})
	}
	if len(peers) == 0 {
		peers = append(peers, pterm.Panel{Data: pterm.LightRed("No peers yet: create an offer or accept a signal")})
	}
	dashboard := []pterm.Panel{{Data: printSelfInfo(v)}}
	if last != nil && last.Round == v.Round {
		dashboard = append(dashboard, pterm.Panel{Data: resultPanel(*last).String()})
	}
	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		peers,
		dashboard,
	}).Render()
}

func printPeerInfo(p rps.PeerState) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var conn string
	if p.Connected {
		conn = pterm.LightGreen("Connected")
	} else {
		conn = pterm.LightRed("Disconnected")
	}
	name := short(p.ID)
	if p.Description != "" {
		name = p.Description + " (" + name + ")"
	}
	hand := "?"
	if p.RevealedMove != nil {
		hand = p.RevealedMove.String()
	}
	return pbox.WithTitle(name).WithTitleTopLeft().Sprintf("%s\nPhase: %s\nHand: %s\n", conn, p.Phase(), hand)
}

func printSelfInfo(v application.View) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(10).WithTopPadding(1).WithBottomPadding(1)
	hand := "not chosen"
	if v.Self.Move != nil {
		hand = v.Self.Move.String()
	}
	return pbox.WithTitle("You (" + short(v.SelfID) + ")").WithTitleTopLeft().Sprintf(
		"Round: %d\nPhase: %s\n%s\n", v.Round, v.Self.Phase(), pterm.BgGreen.Sprint(" "+hand+" "))
}

// ledgerPanel lists recorded envelopes with the outcome of a full chain check.
func ledgerPanel(blocks []ledger.Block, head ledger.Block, total int, verifyErr error) (*printable, error) {
	pbox := pterm.DefaultBox.WithHorizontalPadding(2).WithTopPadding(1).WithBottomPadding(1)
	data := pterm.TableData{{"#", "Direction", "Round", "Type", "Peer"}}
	for _, b := range blocks {
		data = append(data, []string{
			strconv.Itoa(b.Index),
			string(b.Metadata.Direction),
			strconv.FormatUint(b.Metadata.Round, 10),
			b.Metadata.Type,
			short(b.Metadata.Peer),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return nil, err
	}
	status := pterm.LightGreen("chain intact")
	if verifyErr != nil {
		status = pterm.LightRed("chain broken: " + verifyErr.Error())
	}
	text := pterm.Sprintfln("%s\n\n%s\n%d blocks, head %s", table, status, total, short(head.Hash))
	return &printable{box: pbox.WithTitle(pterm.LightYellow("|EVENT LOG|")).WithTitleTopCenter(), text: text}, nil
}

// blockPanel shows one recorded envelope in full.
func blockPanel(b ledger.Block) *printable {
	pbox := pterm.DefaultBox.WithHorizontalPadding(2).WithTopPadding(1).WithBottomPadding(1)
	body := string(b.Envelope)
	if raw, err := json.MarshalIndent(b.Envelope, "", "  "); err == nil {
		body = string(raw)
	}
	title := pterm.LightYellow("|BLOCK " + strconv.Itoa(b.Index) + " " + b.Metadata.Type + "|")
	return &printable{box: pbox.WithTitle(title).WithTitleTopCenter(), text: "hash " + b.Hash + "\nprev " + b.PrevHash + "\n\n" + body}
}
