package main

import (
	"fmt"
	"os"

	"github.com/qinglongcn/bpfsconsensus"
	"github.com/qinglongcn/bpfsconsensus/rules"
	"github.com/spf13/cobra"
)

// validateCmd 校验交易文件
var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "校验交易文件",
	Long:  "读取十六进制或原始序列化的交易文件，执行双路径校验并输出结果",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		failed := 0
		for _, name := range args {
			err := svc.Validator().ValidateFromFile(svc.Files(), name)
			if rules.IsDivergence(err) {
				// 共识分歧不是交易本身的问题，直接终止
				return err
			}
			printResult(name, err)
			if err != nil {
				failed++
			}
		}

		total, divergences := svc.History().GetConsensusStats()
		fmt.Printf("\n共 %d 笔交易，失败 %d 笔，共识检查 %d 次，分歧 %d 次\n",
			len(args), failed, total, divergences)
		if failed > 0 {
			return fmt.Errorf("%d 笔交易校验失败", failed)
		}
		return nil
	},
}

// compatCmd 共识兼容性检查
var compatCmd = &cobra.Command{
	Use:   "compat <file>",
	Short: "共识兼容性检查",
	Long:  "对交易同时执行标准路径和硬件优化路径，确认两者结果类别一致",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		tx, err := svc.Files().ReadTransaction(args[0])
		if err != nil {
			return err
		}

		valid, err := svc.Validator().VerifyConsensusCompatibility(tx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t共识一致，标准校验结果: %t\n", tx.TxHash(), valid)

		if rec, ok := svc.History().GetRecord(tx.TxHash().String()); ok {
			bpfsconsensus.PrintRecord(os.Stdout, rec)
		}
		return nil
	},
}

// inspectCmd 反汇编交易
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "查看交易内容",
	Long:  "打印交易的输入输出、见证数据和脚本反汇编",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files := bpfsconsensus.NewFileStore(options.Fs, "")
		tx, err := files.ReadTransaction(args[0])
		if err != nil {
			return err
		}
		return bpfsconsensus.DumpTransaction(os.Stdout, tx)
	},
}

// printResult 打印单个文件的校验结果
func printResult(name string, err error) {
	if err == nil {
		fmt.Printf("%s\t通过\n", name)
		return
	}
	if kind, ok := rules.KindOf(err); ok {
		fmt.Printf("%s\t失败\t[%s] %v\n", name, kind, err)
		return
	}
	fmt.Printf("%s\t失败\t%v\n", name, err)
}
